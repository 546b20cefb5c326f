package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMessage_Validate(t *testing.T) {
	cases := []struct {
		name string
		msg  *Message
		err  error
	}{
		{"ok text", &Message{SenderID: "a", ReceiverID: "b", Text: "hi"}, nil},
		{"ok media only", &Message{SenderID: "a", ReceiverID: "b", Audio: "k"}, nil},
		{"nil", nil, ErrInvalidMessage},
		{"no sender", &Message{ReceiverID: "b", Text: "hi"}, ErrInvalidIdentity},
		{"no receiver", &Message{SenderID: "a", Text: "hi"}, ErrInvalidMessage},
		{"blank text", &Message{SenderID: "a", ReceiverID: "b", Text: "  "}, ErrInvalidMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestCallSignal_Validate(t *testing.T) {
	assert.NoError(t, CallSignal{Type: SignalOffer, From: "a", To: "b"}.Validate())
	assert.ErrorIs(t, CallSignal{Type: 0, From: "a", To: "b"}.Validate(), ErrMalformedSignal)
	assert.ErrorIs(t, CallSignal{Type: SignalEnd + 1, From: "a", To: "b"}.Validate(), ErrMalformedSignal)
	assert.ErrorIs(t, CallSignal{Type: SignalAccept, From: "a"}.Validate(), ErrMalformedSignal)
	assert.ErrorIs(t, CallSignal{Type: SignalReject, From: "a", To: "a"}.Validate(), ErrMalformedSignal)
}

func TestCallLog_Validate(t *testing.T) {
	valid := CallLog{CallerID: "a", ReceiverID: "b", CallType: CallAudio, Status: CallCompleted, DurationSeconds: 30}
	assert.NoError(t, valid.Validate())

	broken := []func(*CallLog){
		func(l *CallLog) { l.ReceiverID = "" },
		func(l *CallLog) { l.ReceiverID = l.CallerID },
		func(l *CallLog) { l.CallType = "fax" },
		func(l *CallLog) { l.Status = "lost" },
		func(l *CallLog) { l.DurationSeconds = -1 },
	}
	for _, mutate := range broken {
		l := valid
		mutate(&l)
		assert.ErrorIs(t, l.Validate(), ErrInvalidCallLog)
	}
}

func TestPushToken_Validate(t *testing.T) {
	assert.NoError(t, (&PushToken{UserID: "a", Token: "t", Platform: PlatformWeb}).Validate())
	assert.ErrorIs(t, (&PushToken{Token: "t", Platform: PlatformWeb}).Validate(), ErrInvalidIdentity)
	assert.ErrorIs(t, (&PushToken{UserID: "a", Platform: PlatformIOS}).Validate(), ErrInvalidPushToken)
	assert.ErrorIs(t, (&PushToken{UserID: "a", Token: "t", Platform: "pager"}).Validate(), ErrInvalidPushToken)
}

func TestNotifications(t *testing.T) {
	msg := &Message{ID: uuid.New(), SenderID: "alice", ReceiverID: "bob", Text: "hello there"}
	n := NewMessageNotification(msg)
	assert.Equal(t, NotificationMessage, n.Kind)
	assert.Equal(t, "You have a new message!", n.Title)
	assert.Equal(t, msg.ID.String(), n.Data["message_id"])
	assert.Equal(t, "alice", n.Data["sender_id"])

	c := NewCallNotification(CallSignal{Type: SignalOffer, From: "alice", To: "bob"})
	assert.Equal(t, NotificationCall, c.Kind)
	assert.Equal(t, "Someone is calling you (audio)", c.Body)
	assert.Equal(t, "audio", c.Data["call_type"])
}
