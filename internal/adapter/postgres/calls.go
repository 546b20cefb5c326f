package postgres

import (
	"context"
	"fmt"

	"github.com/webitel/im-realtime-service/internal/domain/model"
)

const RecentCallsLimit = 20

type CallLogRepository struct {
	db DBTX
}

func NewCallLogRepository(db DBTX) *CallLogRepository {
	return &CallLogRepository{db: db}
}

func (r *CallLogRepository) SaveCallLog(ctx context.Context, log *model.CallLog) error {
	query :=
		`INSERT INTO call_logs (id, caller_id, receiver_id, call_type, status, duration_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		log.ID, log.CallerID, log.ReceiverID, string(log.CallType), string(log.Status),
		log.DurationSeconds, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert call log: %w", model.ErrPersistence, err)
	}
	return nil
}

// RecentCalls lists the newest calls userID took part in, either side.
func (r *CallLogRepository) RecentCalls(ctx context.Context, userID string, limit int) ([]*model.CallLog, error) {
	if limit <= 0 || limit > RecentCallsLimit {
		limit = RecentCallsLimit
	}

	query :=
		`SELECT id, caller_id, receiver_id, call_type, status, duration_seconds, created_at
		 FROM call_logs
		 WHERE caller_id = $1 OR receiver_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*model.CallLog
	for rows.Next() {
		var (
			l        model.CallLog
			callType string
			status   string
		)
		if err := rows.Scan(&l.ID, &l.CallerID, &l.ReceiverID, &callType, &status,
			&l.DurationSeconds, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		l.CallType = model.CallType(callType)
		l.Status = model.CallStatus(status)
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return out, nil
}
