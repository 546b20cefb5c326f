package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/config"
	"go.opentelemetry.io/otel/trace"
)

// NewPublisher builds the push request publisher: a durable AMQP queue when a
// broker URL is configured, an in-process channel otherwise.
func NewPublisher(cfg config.AMQPConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if cfg.URL == "" {
		logger.Info("AMQP URL is empty, push requests stay in process", nil)
		return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger), nil
	}

	pub, err := amqp.NewPublisher(amqp.NewDurableQueueConfig(cfg.URL), logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
	}
	return pub, nil
}

// tracingPublisher stamps every outgoing message with a trace_id so the push
// worker can correlate its logs with the request that caused the push.
type tracingPublisher struct {
	message.Publisher
}

// WithTracing is a message.PublisherDecorator.
func WithTracing(pub message.Publisher) (message.Publisher, error) {
	return &tracingPublisher{Publisher: pub}, nil
}

var _ message.PublisherDecorator = WithTracing

func (p *tracingPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		if msg.Metadata.Get("trace_id") != "" {
			continue
		}

		traceID := uuid.NewString()
		if sc := trace.SpanContextFromContext(msg.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		msg.Metadata.Set("trace_id", traceID)
	}
	return p.Publisher.Publish(topic, msgs...)
}
