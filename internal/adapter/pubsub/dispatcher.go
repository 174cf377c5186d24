package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-tag-router/internal/domain/codec"
	"github.com/webitel/im-tag-router/internal/domain/model"
)

// RequestDispatcher defines the high-level contract for producers that hand
// requests to the router through the broker.
type RequestDispatcher interface {
	Publish(ctx context.Context, req *model.Request) error
	Publisher() message.Publisher
}

type requestDispatcher struct {
	publisher message.Publisher
	topic     string
}

func NewRequestDispatcher(pub message.Publisher, topic string) RequestDispatcher {
	return &requestDispatcher{
		publisher: pub,
		topic:     topic,
	}
}

func (d *requestDispatcher) Publish(ctx context.Context, req *model.Request) error {
	if req == nil {
		return model.Validationf("dispatcher.publish", "cannot publish nil request")
	}

	payload, err := codec.Encode(req)
	if err != nil {
		return fmt.Errorf("request dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("request dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}
	return nil
}

func (d *requestDispatcher) Publisher() message.Publisher {
	return d.publisher
}
