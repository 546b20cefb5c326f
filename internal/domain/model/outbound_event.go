package model

import (
	"time"

	"github.com/google/uuid"
)

// PushRequest is the envelope published to the push delivery queue,
// one per resolved device token.
type PushRequest struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	UserID       string        `json:"user_id"`
	Token        string        `json:"token"`
	Platform     Platform      `json:"platform"`
	Notification *Notification `json:"notification"`
	Timestamp    int64         `json:"timestamp"`
}

// NewPushRequest creates a fresh request ready for publishing.
func NewPushRequest(source string, token PushToken, n *Notification) *PushRequest {
	return &PushRequest{
		ID:           uuid.NewString(),
		Source:       source,
		UserID:       token.UserID,
		Token:        token.Token,
		Platform:     token.Platform,
		Notification: n,
		Timestamp:    time.Now().UnixMilli(),
	}
}
