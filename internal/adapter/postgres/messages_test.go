package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSaveMessage_Success(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	msg := &model.Message{
		ID:         uuid.New(),
		ClientID:   "c-1",
		SenderID:   "A",
		ReceiverID: "B",
		Text:       "hello",
		CreatedAt:  1700000000000,
	}

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+messages\s*\(id,\s*client_id,\s*sender_id,\s*receiver_id,.*\)\s*VALUES`).
		WithArgs(sqlmock.AnyArg(), "c-1", "A", "B", "hello", "", "", false, int64(1700000000000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveMessage(context.Background(), msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMessage_DBErrorIsPersistenceError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	mock.ExpectExec(`INSERT\s+INTO\s+messages`).WillReturnError(errors.New("connection refused"))

	err := repo.SaveMessage(context.Background(), &model.Message{ID: uuid.New(), SenderID: "A", ReceiverID: "B", Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistence)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestHistory_OldestFirst(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	id1, id2 := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "client_id", "sender_id", "receiver_id", "text", "image_url", "audio_url", "is_read", "created_at"}).
		AddRow(id1.String(), "", "A", "B", "first", "", "", true, int64(1)).
		AddRow(id2.String(), "", "B", "A", "", "https://cdn/img.png", "", false, int64(2))

	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+\(.*ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$3\s*\)\s*recent\s+ORDER\s+BY\s+created_at\s+ASC`).
		WithArgs("A", "B", 50).
		WillReturnRows(rows)

	got, err := repo.History(context.Background(), "A", "B", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, id1, got[0].ID)
	assert.Equal(t, "first", got[0].Text)
	assert.True(t, got[0].IsRead)
	assert.Equal(t, "https://cdn/img.png", got[1].Image)
	assert.Equal(t, int64(2), got[1].CreatedAt)
}

func TestHistory_ClampsLimit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	mock.ExpectQuery(`SELECT`).
		WithArgs("A", "B", DefaultHistoryLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.History(context.Background(), "A", "B", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_QueryError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("timeout"))

	_, err := repo.History(context.Background(), "A", "B", 10)
	assert.ErrorContains(t, err, "db error: timeout")
}

func TestMarkRead(t *testing.T) {
	db, mock := newMock(t)
	repo := NewMessageRepository(db)

	mock.ExpectExec(`(?s)^UPDATE\s+messages\s+SET\s+is_read\s*=\s*TRUE\s+WHERE\s+receiver_id\s*=\s*\$1\s+AND\s+sender_id\s*=\s*\$2`).
		WithArgs("A", "B").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkRead(context.Background(), "A", "B")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
