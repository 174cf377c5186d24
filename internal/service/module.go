package service

import (
	"log/slog"

	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/codec"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// [CONFIGURATION_GATE] A malformed application table aborts startup here.
		NewAuthFromConfig,
		NewMetrics,
		fx.Annotate(
			NewRouterFromConfig,
			fx.As(new(Router)),
		),
	),

	// [DECORATION_LAYER] Intercept Auther to add decision logging
	fx.Decorate(func(orig Auther, logger *slog.Logger) Auther {
		return NewAuthMiddleware(orig, logger)
	}),
)

// NewRouterFromConfig wires the router options from cfg.Router.
func NewRouterFromConfig(cfg *config.Config, hub registry.Hubber, auth Auther, metrics *Metrics, logger *slog.Logger) *ConnectionRouter {
	opts := []RouterOption{
		WithSendTimeout(cfg.Router.SendTimeout),
		WithFanoutWorkers(cfg.Router.FanoutWorkers),
		WithTagsParser(codec.NewQueryTagsParser(cfg.Router.TagsParam, cfg.Router.TagsCacheSize)),
		WithMetrics(metrics),
	}
	if cfg.Router.ParseMessages {
		opts = append(opts, WithMessageParser(codec.DefaultMessageParser{}))
	}
	return NewConnectionRouter(hub, auth, logger, opts...)
}
