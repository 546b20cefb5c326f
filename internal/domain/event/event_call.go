package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

var _ Eventer = (*CallEvent)(nil)

// IncomingCallPayload is delivered to the callee of an offer.
type IncomingCallPayload struct {
	CallerID      string         `json:"callerId"`
	CallerName    string         `json:"callerName,omitempty"`
	CallerProfile string         `json:"callerProfile,omitempty"`
	CallType      model.CallType `json:"callType,omitempty"`
}

// CallPeerPayload is delivered for accept/reject/end and names the peer that produced the signal.
type CallPeerPayload struct {
	PeerID string `json:"peerId"`
}

// CallEvent relays one call signal verbatim to the addressed peer.
type CallEvent struct {
	id         string
	kind       EventKind
	signal     model.CallSignal
	occurredAt int64
	cached     atomic.Value
}

// NewCallEvent maps the signal type onto the outbound event kind.
func NewCallEvent(sig model.CallSignal) *CallEvent {
	var kind EventKind
	switch sig.Type {
	case model.SignalOffer:
		kind = IncomingCall
	case model.SignalAccept:
		kind = CallAccepted
	case model.SignalReject:
		kind = CallRejected
	case model.SignalEnd:
		kind = CallEnded
	}

	return &CallEvent{
		id:         uuid.NewString(),
		kind:       kind,
		signal:     sig,
		occurredAt: time.Now().UnixMilli(),
	}
}

func (e *CallEvent) GetID() string              { return e.id }
func (e *CallEvent) GetKind() EventKind         { return e.kind }
func (e *CallEvent) GetUserID() string          { return e.signal.To }
func (e *CallEvent) GetPriority() EventPriority { return PriorityHigh }
func (e *CallEvent) GetOccurredAt() int64       { return e.occurredAt }
func (e *CallEvent) GetCached() any             { return e.cached.Load() }
func (e *CallEvent) SetCached(v any)            { e.cached.Store(v) }
func (e *CallEvent) Signal() model.CallSignal   { return e.signal }

func (e *CallEvent) GetPayload() any {
	if e.kind == IncomingCall {
		return &IncomingCallPayload{
			CallerID:      e.signal.From,
			CallerName:    e.signal.Meta.CallerName,
			CallerProfile: e.signal.Meta.CallerProfile,
			CallType:      e.signal.Meta.CallType,
		}
	}
	return &CallPeerPayload{PeerID: e.signal.From}
}
