package model

import "fmt"

type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

func (p Platform) Valid() bool {
	return p == PlatformWeb || p == PlatformAndroid || p == PlatformIOS
}

// PushToken is a platform-specific delivery address registered by a client device.
// For web push Token holds the serialized subscription object.
type PushToken struct {
	UserID    string
	Token     string
	Platform  Platform
	CreatedAt int64
}

func (t *PushToken) Validate() error {
	switch {
	case t.UserID == "":
		return fmt.Errorf("%w: %w", ErrInvalidPushToken, ErrInvalidIdentity)
	case t.Token == "":
		return fmt.Errorf("%w: token is required", ErrInvalidPushToken)
	case !t.Platform.Valid():
		return fmt.Errorf("%w: platform %q", ErrInvalidPushToken, t.Platform)
	}
	return nil
}

type NotificationKind string

const (
	NotificationMessage NotificationKind = "message"
	NotificationCall    NotificationKind = "call"
)

// Notification is the transport-neutral content handed to the Notification Gateway.
type Notification struct {
	Kind  NotificationKind  `json:"kind"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	URL   string            `json:"url,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// NewMessageNotification builds the offline alert for a persisted message.
func NewMessageNotification(msg *Message) *Notification {
	return &Notification{
		Kind:  NotificationMessage,
		Title: "You have a new message!",
		Body:  msg.Preview(),
		URL:   fmt.Sprintf("/messages/%s", msg.SenderID),
		Data: map[string]string{
			"message_id": msg.ID.String(),
			"sender_id":  msg.SenderID,
		},
	}
}

// NewCallNotification builds the offline alert for an unanswered call offer.
func NewCallNotification(sig CallSignal) *Notification {
	caller := sig.Meta.CallerName
	if caller == "" {
		caller = "Someone"
	}

	callType := sig.Meta.CallType
	if !callType.Valid() {
		callType = CallAudio
	}

	return &Notification{
		Kind:  NotificationCall,
		Title: "Incoming call",
		Body:  fmt.Sprintf("%s is calling you (%s)", caller, callType),
		Icon:  sig.Meta.CallerProfile,
		Data: map[string]string{
			"caller_id": sig.From,
			"call_type": string(callType),
		},
	}
}
