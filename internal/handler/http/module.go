package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/domain/registry"
	"github.com/webitel/im-tag-router/internal/handler/ws"
	"github.com/webitel/im-tag-router/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		NewHandlerFromConfig,
		fx.Annotate(
			func(h *Handler) http.Handler { return h.Routes() },
			fx.ResultTags(`name:"routes"`),
		),
	),
)

func NewHandlerFromConfig(
	cfg *config.Config,
	logger *slog.Logger,
	router service.Router,
	hub registry.Hubber,
	wsHandler *ws.WSHandler,
	gatherer prometheus.Gatherer,
) *Handler {
	return NewHandler(logger, router, hub, wsHandler, gatherer, cfg.Server.WSPath)
}
