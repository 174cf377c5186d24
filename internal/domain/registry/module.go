package registry

import (
	"context"

	"github.com/webitel/im-tag-router/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		func(cfg *config.Config) *Hub {
			return NewHub(WithCapacity(cfg.Router.ExpectedConnections))
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Close every session still registered
				return nil
			},
		})
	}),
)
