package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/logger"
)

func mockedStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &SQLiteStore{
		db:  sqlx.NewDb(db, "sqlmock"),
		log: logger.NewTestLogger(t),
	}, mock
}

func TestGetRequest_DatabaseErrorIsNotNotFound(t *testing.T) {
	s, mock := mockedStore(t)
	mock.ExpectQuery("SELECT \\* FROM queued_requests").WillReturnError(assert.AnError)

	_, err := s.GetRequest(context.Background(), "r1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountRequestsByTag_PropagatesError(t *testing.T) {
	s, mock := mockedStore(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM queued_requests").WillReturnError(assert.AnError)

	_, err := s.CountRequestsByTag(context.Background(), "shift-change-sync")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttempts_MissingRecord(t *testing.T) {
	s, mock := mockedStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queued_requests SET attempts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.IncrementAttempts(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkNotificationRead_RollsBackOnReceiptFailure(t *testing.T) {
	s, mock := mockedStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE notifications SET read").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT OR REPLACE INTO read_receipts").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.MarkNotificationRead(context.Background(), "n1", time.Now().UTC())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReceipts_EmptyListSkipsDatabase(t *testing.T) {
	s, mock := mockedStore(t)
	assert.NoError(t, s.DeleteReceipts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
