package pubsub

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-tag-router/config"
)

// Provider owns the broker connections of the process.
type Provider struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	inProcess  bool
}

// NewProvider connects to RabbitMQ when cfg.URL is set. Without a URL an
// in-process channel is used, which only reaches producers in the same process.
func NewProvider(cfg config.BrokerConfig, logger watermill.LoggerAdapter) (*Provider, error) {
	if cfg.URL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
		return &Provider{publisher: ch, subscriber: ch, inProcess: true}, nil
	}

	// [DURABLE_TOPOLOGY] One durable queue per topic; competing consumers share it.
	amqpCfg := amqp.NewDurablePubSubConfig(cfg.URL, amqp.GenerateQueueNameTopicName)

	pub, err := amqp.NewPublisher(amqpCfg, logger)
	if err != nil {
		return nil, err
	}
	sub, err := amqp.NewSubscriber(amqpCfg, logger)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	return &Provider{publisher: pub, subscriber: sub}, nil
}

func (p *Provider) Publisher() message.Publisher   { return p.publisher }
func (p *Provider) Subscriber() message.Subscriber { return p.subscriber }

// InProcess reports whether the provider is backed by gochannel.
func (p *Provider) InProcess() bool { return p.inProcess }

func (p *Provider) Close() error {
	if p.inProcess {
		return p.publisher.Close()
	}
	return errors.Join(p.subscriber.Close(), p.publisher.Close())
}
