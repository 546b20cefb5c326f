package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
	"github.com/webitel/im-realtime-service/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/webitel/im-realtime-service/internal/service"

// Persister is the durable store collaborator. A returned error means the
// message was not recorded.
type Persister interface {
	SaveMessage(ctx context.Context, msg *model.Message) error
}

// Notifier is the push notification collaborator. It resolves device tokens
// for userID internally.
type Notifier interface {
	Notify(ctx context.Context, userID string, n *model.Notification) error
}

// Relay hands an addressed event to the other nodes of the cluster so sessions
// connected elsewhere receive it too. Failures are handled by the relay.
type Relay interface {
	Forward(ctx context.Context, userID string, ev event.Eventer)
}

// MessageRouter is what transports call for every inbound chat or call event.
type MessageRouter interface {
	RouteMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	RouteCallSignal(ctx context.Context, sig model.CallSignal) error
}

var _ MessageRouter = (*Router)(nil)

// Router runs the per-event pipeline: persist, branch on presence,
// push or notify, echo.
type Router struct {
	hub           registry.Hubber
	store         Persister
	notifier      Notifier
	relay         Relay
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	notifyTimeout time.Duration
	now           func() time.Time
}

type RouterOption func(*Router)

func WithNotifyTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.notifyTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithRelay enables cluster fan-out. A nil relay keeps routing node-local.
func WithRelay(rl Relay) RouterOption {
	return func(r *Router) { r.relay = rl }
}

func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

func NewRouter(hub registry.Hubber, store Persister, notifier Notifier, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		hub:           hub,
		store:         store,
		notifier:      notifier,
		logger:        logger,
		tracer:        otel.Tracer(tracerName),
		notifyTimeout: 3 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouteMessage persists msg and then fans it out.
//
// Only a persistence failure is returned (wrapping model.ErrPersistence); in that
// case nobody receives the message. Delivery and notification problems are
// logged and never reach the caller.
func (r *Router) RouteMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "Router.RouteMessage", trace.WithAttributes(
		attribute.String("im.sender_id", msg.SenderID),
		attribute.String("im.receiver_id", msg.ReceiverID),
	))
	defer span.End()

	// [SINGLE_CREATION_FIELD] identity and time are stamped once, before persistence
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = r.now().UnixMilli()
	}
	span.SetAttributes(attribute.String("im.message_id", msg.ID.String()))

	// 1. [PERSIST] strict happens-before for every delivery attempt below
	if err := r.store.SaveMessage(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		r.metrics.MessageRouted(metrics.OutcomeFailed)

		if !errors.Is(err, model.ErrPersistence) {
			err = fmt.Errorf("%w: %w", model.ErrPersistence, err)
		}
		return nil, err
	}

	// 2-3. [PUSH_OR_NOTIFY]
	outcome := r.deliverOrNotify(ctx, msg)
	span.SetAttributes(attribute.String("im.outcome", outcome))
	r.metrics.MessageRouted(outcome)

	// 4. [ECHO] every sender session, including the originating one
	if msg.SenderID != msg.ReceiverID {
		echo := event.NewMessageEvent(msg, msg.SenderID)
		r.hub.Deliver(msg.SenderID, echo)
		r.forward(ctx, msg.SenderID, echo)
	}

	return msg, nil
}

func (r *Router) deliverOrNotify(ctx context.Context, msg *model.Message) string {
	ev := event.NewMessageEvent(msg, msg.ReceiverID)
	r.forward(ctx, msg.ReceiverID, ev)

	switch r.deliverLocal(msg.ReceiverID, ev) {
	case delivered:
		return metrics.OutcomeDelivered
	case dropped:
		return metrics.OutcomeDropped
	}

	// Receiver offline (or unknown): advisory push only.
	r.notify(ctx, msg.ReceiverID, model.NewMessageNotification(msg))
	return metrics.OutcomeNotified
}

type localResult int

const (
	offline localResult = iota
	delivered
	dropped
)

// deliverLocal hands ev to userID's sessions on this node. A user whose last
// session detaches between the lookup and the push counts as offline.
func (r *Router) deliverLocal(userID string, ev event.Eventer) localResult {
	if len(r.hub.Lookup(userID)) == 0 {
		return offline
	}
	if r.hub.Deliver(userID, ev) {
		return delivered
	}
	if !r.hub.IsConnected(userID) {
		return offline
	}
	return dropped
}

// RouteCallSignal relays sig to the addressed peer without persisting anything.
// Only a malformed signal is reported (model.ErrMalformedSignal).
func (r *Router) RouteCallSignal(ctx context.Context, sig model.CallSignal) error {
	if err := sig.Validate(); err != nil {
		r.metrics.CallSignalRouted(sig.Type.String(), metrics.OutcomeFailed)
		return err
	}

	ctx, span := r.tracer.Start(ctx, "Router.RouteCallSignal", trace.WithAttributes(
		attribute.String("im.signal", sig.Type.String()),
		attribute.String("im.from", sig.From),
		attribute.String("im.to", sig.To),
	))
	defer span.End()

	ev := event.NewCallEvent(sig)
	r.forward(ctx, sig.To, ev)

	switch r.deliverLocal(sig.To, ev) {
	case delivered:
		r.metrics.CallSignalRouted(sig.Type.String(), metrics.OutcomeDelivered)
		return nil
	case dropped:
		r.metrics.CallSignalRouted(sig.Type.String(), metrics.OutcomeDropped)
		return nil
	}

	if sig.Type != model.SignalOffer {
		// accept/reject/end mean nothing to an offline party
		r.logger.Debug("CALL_SIGNAL_DROPPED_OFFLINE", "signal", sig.Type.String(), "from", sig.From, "to", sig.To,
			"reason", model.ErrUnknownRecipient)
		r.metrics.CallSignalRouted(sig.Type.String(), metrics.OutcomeDropped)
		return nil
	}

	r.notify(ctx, sig.To, model.NewCallNotification(sig))
	r.metrics.CallSignalRouted(sig.Type.String(), metrics.OutcomeNotified)
	return nil
}

func (r *Router) forward(ctx context.Context, userID string, ev event.Eventer) {
	if r.relay != nil {
		r.relay.Forward(ctx, userID, ev)
	}
}

// notify calls the gateway once under a bounded timeout and swallows the result.
// The caller's cancellation is detached: a sender hanging up must not cancel the push.
func (r *Router) notify(ctx context.Context, userID string, n *model.Notification) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
	defer cancel()

	err := r.notifier.Notify(nctx, userID, n)
	r.metrics.Notified(string(n.Kind), err)
	if err == nil {
		return
	}

	trace.SpanFromContext(ctx).AddEvent("notify_failed", trace.WithAttributes(attribute.String("error", err.Error())))

	if errors.Is(err, model.ErrNoDeliveryToken) {
		// neither a session nor a device: an unknown recipient, not a failure
		r.logger.Debug("NOTIFY_SKIPPED_NO_TOKEN", "user_id", userID, "kind", n.Kind, "reason", model.ErrUnknownRecipient)
		return
	}
	r.logger.Warn("NOTIFY_FAILED", "user_id", userID, "kind", n.Kind, "err", err)
}
