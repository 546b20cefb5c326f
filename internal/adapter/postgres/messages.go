package postgres

import (
	"context"
	"fmt"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

const DefaultHistoryLimit = 100

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// SaveMessage inserts msg. Any failure is reported as model.ErrPersistence.
func (r *MessageRepository) SaveMessage(ctx context.Context, msg *model.Message) error {
	query :=
		`INSERT INTO messages (id, client_id, sender_id, receiver_id, text, image_url, audio_url, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.ClientID, msg.SenderID, msg.ReceiverID,
		msg.Text, msg.Image, msg.Audio, msg.IsRead, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert message: %w", model.ErrPersistence, err)
	}

	return nil
}

// History returns the latest limit messages exchanged between userID and peerID, oldest first.
func (r *MessageRepository) History(ctx context.Context, userID, peerID string, limit int) ([]*model.Message, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}

	query :=
		`SELECT id, client_id, sender_id, receiver_id, text, image_url, audio_url, is_read, created_at
		 FROM (
		     SELECT * FROM messages
		     WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		     ORDER BY created_at DESC
		     LIMIT $3
		 ) recent
		 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.ClientID, &m.SenderID, &m.ReceiverID,
			&m.Text, &m.Image, &m.Audio, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}

// MarkRead flags every unread message from peerID to readerID as read.
func (r *MessageRepository) MarkRead(ctx context.Context, readerID, peerID string) (int64, error) {
	query :=
		`UPDATE messages SET is_read = TRUE
		 WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read`

	res, err := r.db.ExecContext(ctx, query, readerID, peerID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
