package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-tag-router/config"
	pubsubadapter "github.com/webitel/im-tag-router/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		func(cfg *config.Config, logger watermill.LoggerAdapter) (*pubsubadapter.Provider, error) {
			return pubsubadapter.NewProvider(cfg.Broker, logger)
		},
		NewRequestHandler,
		NewWatermillRouter,
	),

	fx.Invoke(
		func(h *RequestHandler, router *message.Router, provider *pubsubadapter.Provider) error {
			return h.RegisterHandlers(router, provider)
		},
		RunRouter,
	),
)

// RunRouter ties the watermill router to the fx lifecycle.
func RunRouter(lc fx.Lifecycle, router *message.Router, provider *pubsubadapter.Provider) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			errCh := make(chan error, 1)
			go func() { errCh <- router.Run(ctx) }()

			select {
			case <-router.Running():
				return nil
			case err := <-errCh:
				return err
			case <-startCtx.Done():
				return startCtx.Err()
			}
		},
		OnStop: func(context.Context) error {
			cancel()
			if err := router.Close(); err != nil {
				return err
			}
			return provider.Close()
		},
	})
}
