package event

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is a generic envelope for internal signals and presence notifications.
type SystemEvent struct {
	id         string
	userID     string
	kind       EventKind
	priority   EventPriority
	occurredAt int64
	payload    any
	cached     atomic.Value
}

func (e *SystemEvent) GetID() string              { return e.id }
func (e *SystemEvent) GetKind() EventKind         { return e.kind }
func (e *SystemEvent) GetUserID() string          { return e.userID }
func (e *SystemEvent) GetPriority() EventPriority { return e.priority }
func (e *SystemEvent) GetOccurredAt() int64       { return e.occurredAt }
func (e *SystemEvent) GetPayload() any            { return e.payload }
func (e *SystemEvent) GetCached() any             { return e.cached.Load() }
func (e *SystemEvent) SetCached(v any)            { e.cached.Store(v) }

// NewSystemEvent is a universal factory for creating any signal.
func NewSystemEvent(userID string, kind EventKind, priority EventPriority, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		userID:     userID,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

// NewOnlineUsersEvent carries the full online set, never a diff. It is low
// priority: a full session buffer drops it at once and the next broadcast
// supersedes it.
func NewOnlineUsersEvent(userIDs []string) *SystemEvent {
	if userIDs == nil {
		userIDs = []string{}
	}
	return NewSystemEvent("", OnlineUsers, PriorityLow, userIDs)
}

func NewConnectedEvent(userID string, p *model.ConnectedPayload) *SystemEvent {
	return NewSystemEvent(userID, Connected, PriorityHigh, p)
}

func NewDisconnectedEvent(userID, reason, code string) *SystemEvent {
	return NewSystemEvent(userID, Disconnected, PriorityHigh, &model.DisconnectedPayload{
		Reason: reason,
		Code:   code,
	})
}

// SendFailedPayload tells the originating connection that a message was not stored.
type SendFailedPayload struct {
	ClientID   string `json:"clientId,omitempty"`
	ReceiverID string `json:"receiverId"`
	Reason     string `json:"reason"`
}

func NewSendFailedEvent(userID string, p *SendFailedPayload) *SystemEvent {
	return NewSystemEvent(userID, SendMessageFailed, PriorityHigh, p)
}
