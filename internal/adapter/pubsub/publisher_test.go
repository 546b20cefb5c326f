package pubsub

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/config"
	"go.opentelemetry.io/otel/trace"
)

func TestNewPublisher_InProcessWithoutURL(t *testing.T) {
	pub, err := NewPublisher(config.AMQPConfig{}, watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	_, ok := pub.(*gochannel.GoChannel)
	assert.True(t, ok)
}

func TestWithTracing_StampsTraceID(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	t.Cleanup(func() { _ = ch.Close() })

	msgs, err := ch.Subscribe(context.Background(), "topic")
	require.NoError(t, err)

	pub, err := WithTracing(ch)
	require.NoError(t, err)

	traceID := trace.TraceID{0x0a, 0x0b}
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{0x01}})

	traced := message.NewMessage(watermill.NewUUID(), []byte("{}"))
	traced.SetContext(trace.ContextWithSpanContext(context.Background(), sc))

	plain := message.NewMessage(watermill.NewUUID(), []byte("{}"))

	require.NoError(t, pub.Publish("topic", traced, plain))

	// gochannel does not guarantee order across a batch.
	stamped := map[string]string{}
	for range 2 {
		msg := <-msgs
		stamped[msg.UUID] = msg.Metadata.Get("trace_id")
		msg.Ack()
	}

	assert.Equal(t, traceID.String(), stamped[traced.UUID])
	assert.NotEmpty(t, stamped[plain.UUID])
}
