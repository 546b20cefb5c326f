package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/webitel/im-realtime-service/internal/domain/event"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string `json:"event"` // e.g., "newMessage", "getOnlineUsers"
	ID      string `json:"id"`    // event ID
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// EventNames is the wire name of every outbound event kind.
var EventNames = map[event.EventKind]string{
	event.Connected:         "connected",
	event.Disconnected:      "disconnected",
	event.OnlineUsers:       "getOnlineUsers",
	event.NewMessage:        "newMessage",
	event.SendMessageFailed: "sendMessageFailed",
	event.IncomingCall:      "incomingCall",
	event.CallAccepted:      "callAccepted",
	event.CallRejected:      "callRejected",
	event.CallEnded:         "callEnded",
}

// MarshallDeliveryEvent prepares data for WebSocket transmission.
// The encoded frame is cached on the event, so a broadcast or a multi-device
// fan-out serializes it once.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached, ok := ev.GetCached().([]byte); ok {
		return cached, nil
	}

	name, ok := EventNames[ev.GetKind()]
	if !ok {
		return nil, fmt.Errorf("ws marshaller: no wire name for %s", ev.GetKind())
	}

	res := &WSEvent{
		Event:   name,
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: ev.GetPayload(),
	}

	if m, ok := res.Payload.(*model.Message); ok {
		res.Payload = MapMessage(m)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("ws marshaller: %s: %w", name, err)
	}

	ev.SetCached(data)
	return data, nil
}
