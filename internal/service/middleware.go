package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// NotifierMiddleware implements [DECORATOR_PATTERN] to add observability
// to the notification gateway without touching its logic.
type NotifierMiddleware struct {
	Next   Notifier
	Logger *slog.Logger
}

func NewNotifierMiddleware(next Notifier, logger *slog.Logger) Notifier {
	return &NotifierMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *NotifierMiddleware) Notify(ctx context.Context, userID string, n *model.Notification) error {
	start := time.Now()
	err := m.Next.Notify(ctx, userID, n)

	m.Logger.Debug("PUSH_NOTIFY_ATTEMPT",
		"user_id", userID,
		"kind", n.Kind,
		"success", err == nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return err
}

// PersisterMiddleware times every store write.
type PersisterMiddleware struct {
	Next   Persister
	Logger *slog.Logger
}

func NewPersisterMiddleware(next Persister, logger *slog.Logger) Persister {
	return &PersisterMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *PersisterMiddleware) SaveMessage(ctx context.Context, msg *model.Message) error {
	start := time.Now()
	err := m.Next.SaveMessage(ctx, msg)
	duration := time.Since(start)

	if err != nil {
		m.Logger.Error("MESSAGE_PERSIST_FAILED",
			"err", err,
			"message_id", msg.ID,
			"sender_id", msg.SenderID,
			"receiver_id", msg.ReceiverID,
			"duration_ms", duration.Milliseconds(),
		)
		return err
	}

	m.Logger.Debug("MESSAGE_PERSISTED",
		"message_id", msg.ID,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}
