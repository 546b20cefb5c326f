package amqp

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	wsmarshaller "github.com/webitel/im-realtime-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"github.com/webitel/im-realtime-service/internal/service"
)

// Metadata keys of a relayed frame.
const (
	MetaUserID     = "user_id"
	MetaOrigin     = "origin"
	MetaEventID    = "event_id"
	MetaKind       = "kind"
	MetaPriority   = "priority"
	MetaOccurredAt = "occurred_at"
)

var _ service.Relay = (*Relay)(nil)

// Relay publishes addressed events, already encoded as WS frames, to the
// cluster exchange.
type Relay struct {
	pub     message.Publisher
	topic   string
	nodeID  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRelay(pub message.Publisher, topic, nodeID string, logger *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{pub: pub, topic: topic, nodeID: nodeID, logger: logger, metrics: m}
}

func (r *Relay) Forward(ctx context.Context, userID string, ev event.Eventer) {
	frame, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		r.logger.Error("RELAY_ENCODE_FAILED", "kind", ev.GetKind().String(), "err", err)
		r.metrics.Relayed(metrics.RelayOut, false)
		return
	}

	msg := message.NewMessage(uuid.NewString(), frame)
	msg.Metadata.Set(MetaUserID, userID)
	msg.Metadata.Set(MetaOrigin, r.nodeID)
	msg.Metadata.Set(MetaEventID, ev.GetID())
	msg.Metadata.Set(MetaKind, strconv.Itoa(int(ev.GetKind())))
	msg.Metadata.Set(MetaPriority, strconv.Itoa(int(ev.GetPriority())))
	msg.Metadata.Set(MetaOccurredAt, strconv.FormatInt(ev.GetOccurredAt(), 10))
	msg.SetContext(ctx)

	if err := r.pub.Publish(r.topic, msg); err != nil {
		r.logger.Warn("RELAY_PUBLISH_FAILED", "user_id", userID, "event_id", ev.GetID(), "err", err)
		r.metrics.Relayed(metrics.RelayOut, false)
		return
	}
	r.metrics.Relayed(metrics.RelayOut, true)
}
