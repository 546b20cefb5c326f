package model

import "errors"

var (
	// ErrInvalidIdentity: connection or request without a resolvable user identity.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrPersistence: durable store unavailable or write failed. The only fatal routing error.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotify: push notification could not be handed to the platform service.
	ErrNotify = errors.New("notification failure")
	// ErrNoDeliveryToken: recipient has no registered push token.
	ErrNoDeliveryToken = errors.New("no delivery token registered")
	// ErrUnknownRecipient is treated exactly like an offline recipient.
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrMalformedSignal  = errors.New("malformed call signal")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrInvalidCallLog   = errors.New("invalid call log")
	ErrInvalidPushToken = errors.New("invalid push token")
	ErrNotFound         = errors.New("not found")
)
