package amqp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/im-tag-router/config"
	"github.com/webitel/im-tag-router/internal/adapter/pubsub"
	"github.com/webitel/im-tag-router/internal/service"
)

const (
	HandlerName  = "ON_PUBLISH_REQUEST"
	poisonSuffix = ".poison"
)

// RequestHandler consumes wire requests published by server-side producers.
type RequestHandler struct {
	router service.Router
	logger *slog.Logger
	topic  string
}

func NewRequestHandler(cfg *config.Config, router service.Router, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{router: router, logger: logger, topic: cfg.Broker.Topic}
}

// NewWatermillRouter builds the message router with process-wide middleware.
func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 5 * time.Second}, logger)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *RequestHandler) RegisterHandlers(router *message.Router, provider *pubsub.Provider) error {
	poison, err := middleware.PoisonQueue(provider.Publisher(), h.topic+poisonSuffix)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	router.AddConsumerHandler(HandlerName, h.topic, provider.Subscriber(), Bind(h)).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
		poison,
		NewRetryMiddleware(h.logger).Middleware,
		middleware.Timeout(time.Second*30),
	)

	h.logger.Info("AMQP_PIPELINE_READY", "topic", h.topic, "in_process", provider.InProcess())
	return nil
}
