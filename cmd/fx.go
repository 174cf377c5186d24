package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/webitel/im-tag-router/config"
	httpsrv "github.com/webitel/im-tag-router/infra/server/http"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	amqpdi "github.com/webitel/im-tag-router/internal/handler/amqp"
	httphandler "github.com/webitel/im-tag-router/internal/handler/http"
	wshandler "github.com/webitel/im-tag-router/internal/handler/ws"
	"github.com/webitel/im-tag-router/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(appOptions(cfg)...)
}

func appOptions(cfg *config.Config) []fx.Option {
	opts := []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			fx.Annotate(
				ProvideMetricsRegistry,
				fx.As(new(prometheus.Registerer)),
				fx.As(new(prometheus.Gatherer)),
			),
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: logger}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		registry.Module,
		service.Module,
		wshandler.Module,
		httphandler.Module,
		httpsrv.Module,
	}

	// [OPTIONAL_INGESTION] Producers reach the router over the broker only when enabled.
	if cfg.Broker.Enabled {
		opts = append(opts, amqpdi.Module)
	}
	return opts
}

func ProvideLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", ServiceName,
		"version", version,
	)
}

func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With("component", "watermill"))
}

func ProvideMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
