package postgres

import (
	"context"
	"fmt"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

type PushTokenRepository struct {
	db DBTX
}

func NewPushTokenRepository(db DBTX) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// AddToken upserts a device token; re-registering refreshes platform and time.
func (r *PushTokenRepository) AddToken(ctx context.Context, t *model.PushToken) error {
	query :=
		`INSERT INTO push_tokens (user_id, token, platform, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, token) DO UPDATE
		 SET platform = EXCLUDED.platform, created_at = EXCLUDED.created_at`

	if _, err := r.db.ExecContext(ctx, query, t.UserID, t.Token, string(t.Platform), t.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveToken deletes one token. model.ErrNotFound when nothing matched.
func (r *PushTokenRepository) RemoveToken(ctx context.Context, userID, token string) error {
	query := `DELETE FROM push_tokens WHERE user_id = $1 AND token = $2`

	res, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PushTokenRepository) Tokens(ctx context.Context, userID string) ([]model.PushToken, error) {
	query :=
		`SELECT user_id, token, platform, created_at FROM push_tokens
		 WHERE user_id = $1
		 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []model.PushToken
	for rows.Next() {
		var (
			t        model.PushToken
			platform string
		)
		if err := rows.Scan(&t.UserID, &t.Token, &platform, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		t.Platform = model.Platform(platform)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}
