package event

import "sync/atomic"

var _ Eventer = (*RelayedEvent)(nil)

// RelayedEvent is an event that was routed on another node and arrives here
// already encoded. The frame is preset as the cached transport encoding.
type RelayedEvent struct {
	id         string
	userID     string
	kind       EventKind
	priority   EventPriority
	occurredAt int64
	frame      []byte
	cached     atomic.Value
}

func NewRelayedEvent(id, userID string, kind EventKind, priority EventPriority, occurredAt int64, frame []byte) *RelayedEvent {
	e := &RelayedEvent{
		id:         id,
		userID:     userID,
		kind:       kind,
		priority:   priority,
		occurredAt: occurredAt,
		frame:      frame,
	}
	e.cached.Store(frame)
	return e
}

func (e *RelayedEvent) GetID() string              { return e.id }
func (e *RelayedEvent) GetKind() EventKind         { return e.kind }
func (e *RelayedEvent) GetUserID() string          { return e.userID }
func (e *RelayedEvent) GetPriority() EventPriority { return e.priority }
func (e *RelayedEvent) GetOccurredAt() int64       { return e.occurredAt }
func (e *RelayedEvent) GetPayload() any            { return e.frame }
func (e *RelayedEvent) GetCached() any             { return e.cached.Load() }
func (e *RelayedEvent) SetCached(v any)            { e.cached.Store(v) }
