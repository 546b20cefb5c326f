package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/im-realtime-service/config"
)

// RelayTransport is the cluster fan-out channel: every node publishes to the
// same exchange and consumes it through a queue of its own.
type RelayTransport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewRelayTransport builds a fanout exchange with one auto-deleted queue per
// node (named after nodeID). Without a broker URL both ends share one
// in-process channel.
func NewRelayTransport(cfg config.AMQPConfig, nodeID string, logger watermill.LoggerAdapter) (*RelayTransport, error) {
	if cfg.URL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &RelayTransport{Publisher: ch, Subscriber: ch}, nil
	}

	amqpCfg := amqp.NewNonDurablePubSubConfig(cfg.URL, amqp.GenerateQueueNameTopicNameWithSuffix(nodeID))

	pub, err := amqp.NewPublisher(amqpCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: relay publisher: %w", err)
	}

	sub, err := amqp.NewSubscriber(amqpCfg, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("pubsub: relay subscriber: %w", err)
	}

	return &RelayTransport{Publisher: pub, Subscriber: sub}, nil
}

func (t *RelayTransport) Close() error {
	perr := t.Publisher.Close()
	serr := t.Subscriber.Close()
	if perr != nil {
		return perr
	}
	return serr
}
