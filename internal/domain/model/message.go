package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// [MESSAGE] CORE ENTITY REPRESENTING ONE 1:1 CHAT ELEMENT
// Immutable once persisted: the router stamps ID and CreatedAt before the store sees it.
type Message struct {
	ID         uuid.UUID
	ClientID   string // client-side correlation id, echoed back untouched
	SenderID   string
	ReceiverID string
	Text       string
	Image      string // media reference (URL or object key)
	Audio      string
	IsRead     bool
	CreatedAt  int64 // unix millis
}

// HasContent reports whether the message carries text or at least one media reference.
func (m *Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || m.Image != "" || m.Audio != ""
}

// Validate checks the routing envelope of the message.
func (m *Message) Validate() error {
	switch {
	case m == nil:
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	case m.SenderID == "":
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidIdentity)
	case m.ReceiverID == "":
		return fmt.Errorf("%w: receiver is required", ErrInvalidMessage)
	case !m.HasContent():
		return fmt.Errorf("%w: text or media is required", ErrInvalidMessage)
	}
	return nil
}

// Preview returns a short human readable line used by push notifications.
func (m *Message) Preview() string {
	const maxPreview = 120

	switch {
	case strings.TrimSpace(m.Text) != "":
		text := []rune(strings.TrimSpace(m.Text))
		if len(text) > maxPreview {
			return string(text[:maxPreview]) + "…"
		}
		return string(text)
	case m.Image != "":
		return "Sent a photo"
	case m.Audio != "":
		return "Sent a voice message"
	}
	return ""
}
