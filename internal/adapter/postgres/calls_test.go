package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func TestSaveCallLog(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCallLogRepository(db)

	log := &model.CallLog{
		ID:              uuid.New(),
		CallerID:        "A",
		ReceiverID:      "B",
		CallType:        model.CallVideo,
		Status:          model.CallCompleted,
		DurationSeconds: 42,
		CreatedAt:       10,
	}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+call_logs`).
		WithArgs(sqlmock.AnyArg(), "A", "B", "video", "completed", 42, int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveCallLog(context.Background(), log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCallLog_Error(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCallLogRepository(db)

	mock.ExpectExec(`INSERT`).WillReturnError(errors.New("check violation"))

	err := repo.SaveCallLog(context.Background(), &model.CallLog{ID: uuid.New()})
	assert.ErrorIs(t, err, model.ErrPersistence)
}

func TestRecentCalls(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCallLogRepository(db)

	id := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "caller_id", "receiver_id", "call_type", "status", "duration_seconds", "created_at"}).
		AddRow(id.String(), "B", "A", "audio", "missed", 0, int64(99))

	mock.ExpectQuery(`(?s)FROM\s+call_logs\s+WHERE\s+caller_id\s*=\s*\$1\s+OR\s+receiver_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2`).
		WithArgs("A", RecentCallsLimit).
		WillReturnRows(rows)

	got, err := repo.RecentCalls(context.Background(), "A", 500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, model.CallAudio, got[0].CallType)
	assert.Equal(t, model.CallMissed, got[0].Status)
}
