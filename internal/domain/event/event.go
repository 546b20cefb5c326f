package event

import "fmt"

type EventKind int16

const (
	Connected         EventKind = iota + 1 // [SYSTEM]
	Disconnected                           // [SYSTEM]
	OnlineUsers                            // [PRESENCE]
	NewMessage                             // [BUSINESS]
	SendMessageFailed                      // [BUSINESS]
	IncomingCall                           // [SIGNALING]
	CallAccepted                           // [SIGNALING]
	CallRejected                           // [SIGNALING]
	CallEnded                              // [SIGNALING]
)

var kindNames = map[EventKind]string{
	Connected:         "Connected",
	Disconnected:      "Disconnected",
	OnlineUsers:       "OnlineUsers",
	NewMessage:        "NewMessage",
	SendMessageFailed: "SendMessageFailed",
	IncomingCall:      "IncomingCall",
	CallAccepted:      "CallAccepted",
	CallRejected:      "CallRejected",
	CallEnded:         "CallEnded",
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int16(k))
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
//
// GetUserID is the physical recipient of this event instance; an empty value
// marks a broadcast that is addressed to every live connection.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetUserID() string
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
	// GetCached/SetCached hold the transport encoding so a frame fanned out
	// to several sessions is serialized once. Implementations must be safe for
	// concurrent use.
	GetCached() any
	SetCached(any)
}
