package event

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

var _ Eventer = (*MessageEvent)(nil)

// MessageEvent wraps a persisted message for a single routing target.
//
// [STRATEGY]
// It distinguishes between:
//   - [BUSINESS_PEERS] (Message.SenderID/ReceiverID): logical participants.
//   - [ROUTING_TARGET] (UserID): whose connections receive this instance.
//
// The receiver delivery and the sender echo are two instances over the same message.
type MessageEvent struct {
	ID      uuid.UUID
	Message *model.Message
	UserID  string
	cached  atomic.Value
}

func NewMessageEvent(msg *model.Message, userID string) *MessageEvent {
	return &MessageEvent{
		ID:      uuid.New(),
		Message: msg,
		UserID:  userID,
	}
}

func (e *MessageEvent) GetID() string              { return e.ID.String() }
func (e *MessageEvent) GetPayload() any            { return e.Message }
func (e *MessageEvent) GetUserID() string          { return e.UserID }
func (e *MessageEvent) GetOccurredAt() int64       { return e.Message.CreatedAt }
func (e *MessageEvent) GetKind() EventKind         { return NewMessage }
func (e *MessageEvent) GetPriority() EventPriority { return PriorityHigh }
func (e *MessageEvent) GetCached() any             { return e.cached.Load() }
func (e *MessageEvent) SetCached(v any)            { e.cached.Store(v) }
