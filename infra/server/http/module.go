package httpsrv

import (
	"log/slog"
	"net/http"

	"github.com/webitel/im-tag-router/config"
	"go.uber.org/fx"
)

type serverParams struct {
	fx.In

	Cfg     *config.Config
	Logger  *slog.Logger
	Handler http.Handler `name:"routes"`
}

var Module = fx.Module("http-server",
	fx.Provide(func(p serverParams) *Server {
		return New(p.Cfg.Server.Address, p.Handler, p.Logger, p.Cfg.Server.ShutdownTimeout)
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)
