package model

import (
	"fmt"

	"github.com/google/uuid"
)

// SignalType enumerates the call-signaling steps relayed between peers.
type SignalType int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	SignalOffer SignalType = iota + 1
	SignalAccept
	SignalReject
	SignalEnd
)

func (t SignalType) String() string {
	switch t {
	case SignalOffer:
		return "offer"
	case SignalAccept:
		return "accept"
	case SignalReject:
		return "reject"
	case SignalEnd:
		return "end"
	}
	return fmt.Sprintf("SignalType(%d)", int16(t))
}

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

func (t CallType) Valid() bool { return t == CallAudio || t == CallVideo }

// CallMeta is the caller-supplied context of an offer.
type CallMeta struct {
	CallerName    string
	CallerProfile string
	CallType      CallType
}

// CallSignal is a transient relay event; it is never persisted.
// From is always the authenticated originator of the signal, To is the peer it is addressed to.
type CallSignal struct {
	Type SignalType
	From string
	To   string
	Meta CallMeta
}

func (s CallSignal) Validate() error {
	if s.Type < SignalOffer || s.Type > SignalEnd {
		return fmt.Errorf("%w: unknown type %d", ErrMalformedSignal, s.Type)
	}
	if s.From == "" || s.To == "" {
		return fmt.Errorf("%w: both peers are required", ErrMalformedSignal)
	}
	if s.From == s.To {
		return fmt.Errorf("%w: self-addressed signal", ErrMalformedSignal)
	}
	return nil
}

type CallStatus string

const (
	CallCompleted CallStatus = "completed"
	CallMissed    CallStatus = "missed"
	CallRejected  CallStatus = "rejected"
)

func (s CallStatus) Valid() bool {
	return s == CallCompleted || s == CallMissed || s == CallRejected
}

// CallLog is the terminal record of a finished call, written by the client after hang-up.
type CallLog struct {
	ID              uuid.UUID
	CallerID        string
	ReceiverID      string
	CallType        CallType
	Status          CallStatus
	DurationSeconds int
	CreatedAt       int64
}

func (l *CallLog) Validate() error {
	switch {
	case l.CallerID == "" || l.ReceiverID == "":
		return fmt.Errorf("%w: both peers are required", ErrInvalidCallLog)
	case l.CallerID == l.ReceiverID:
		return fmt.Errorf("%w: self call", ErrInvalidCallLog)
	case !l.CallType.Valid():
		return fmt.Errorf("%w: call type %q", ErrInvalidCallLog, l.CallType)
	case !l.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidCallLog, l.Status)
	case l.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration", ErrInvalidCallLog)
	}
	return nil
}
