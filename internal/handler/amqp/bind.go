package amqp

import (
	"log/slog"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
)

// Consumer delivers frames relayed by other nodes to the sessions on this one.
type Consumer struct {
	hub     registry.Hubber
	nodeID  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewConsumer(hub registry.Hubber, nodeID string, logger *slog.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{hub: hub, nodeID: nodeID, logger: logger, metrics: m}
}

// Handle never asks for redelivery: a relayed frame is only worth anything now.
func (c *Consumer) Handle(msg *message.Message) error {
	// [ORIGIN_FILTER] the fanout exchange echoes our own frames back
	if msg.Metadata.Get(MetaOrigin) == c.nodeID {
		return nil
	}

	userID := msg.Metadata.Get(MetaUserID)
	if userID == "" {
		c.logger.Warn("RELAY_ROUTING_FAILED: recipient_missing", "msg_id", msg.UUID)
		c.metrics.Relayed(metrics.RelayIn, false)
		return nil
	}

	// [LOCALITY_FILTER] every node sees every frame; only holders of a session act
	if !c.hub.IsConnected(userID) {
		return nil
	}

	kind, err := strconv.Atoi(msg.Metadata.Get(MetaKind))
	if err != nil || len(msg.Payload) == 0 {
		c.logger.Warn("RELAY_DECODE_FAILED", "msg_id", msg.UUID, "kind", msg.Metadata.Get(MetaKind))
		c.metrics.Relayed(metrics.RelayIn, false)
		return nil
	}

	priority, err := strconv.Atoi(msg.Metadata.Get(MetaPriority))
	if err != nil {
		priority = int(event.PriorityNormal)
	}
	occurredAt, _ := strconv.ParseInt(msg.Metadata.Get(MetaOccurredAt), 10, 64)

	ev := event.NewRelayedEvent(
		msg.Metadata.Get(MetaEventID),
		userID,
		event.EventKind(kind),
		event.EventPriority(priority),
		occurredAt,
		msg.Payload,
	)

	ok := c.hub.Deliver(userID, ev)
	c.metrics.Relayed(metrics.RelayIn, ok)
	return nil
}
