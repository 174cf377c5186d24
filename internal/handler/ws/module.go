package ws

import (
	"log/slog"

	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(NewWSHandlerFromConfig),
)

// NewWSHandlerFromConfig sizes the session from cfg.Router and the socket timeouts from cfg.Server.
func NewWSHandlerFromConfig(cfg *config.Config, logger *slog.Logger, router service.Router) *WSHandler {
	return NewWSHandler(logger, router,
		WithSendBuffer(cfg.Router.SendBuffer),
		WithReadLimit(cfg.Router.MaxMessageBytes),
		WithWriteWait(cfg.Server.WriteWait),
		WithPongWait(cfg.Server.PongWait),
	)
}
