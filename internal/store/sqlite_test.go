package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/config"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
)

func testStoreConfig(path string) config.StoreConfig {
	return config.StoreConfig{Path: path, SchemaVersion: LatestSchemaVersion(), BusyTimeout: 5000}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offline.db")
	s, err := Open(testStoreConfig(path), DefaultUpgrade, logger.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRequest(id string, tag models.OperationTag, enqueuedAt time.Time) models.QueuedRequest {
	return models.QueuedRequest{
		ID:  id,
		Tag: tag,
		Request: models.SerializedRequest{
			URL:     "https://app.example.com/api/timeoff",
			Method:  "POST",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    `{"days":3}`,
		},
		EnqueuedAt: enqueuedAt,
	}
}

func TestOpen_UpgradeRunsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	calls := 0
	upgrade := func(tx *sqlx.Tx, oldVersion, newVersion int) error {
		calls++
		assert.Equal(t, 0, oldVersion)
		assert.Equal(t, LatestSchemaVersion(), newVersion)
		return DefaultUpgrade(tx, oldVersion, newVersion)
	}

	s, err := Open(testStoreConfig(path), upgrade, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)

	// Reopening at the same version must not invoke the callback again.
	s, err = Open(testStoreConfig(path), upgrade, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestOpen_RefusesDowngrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")

	s, err := Open(testStoreConfig(path), DefaultUpgrade, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	downgraded := testStoreConfig(path)
	downgraded.SchemaVersion = LatestSchemaVersion() - 1
	_, err = Open(downgraded, DefaultUpgrade, logger.NewNoOpLogger())
	assert.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStorageUnavailable, apperrors.CodeOf(err))
}

func TestOpen_UnreachablePathIsStorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "nested", "offline.db")

	_, err := Open(testStoreConfig(path), DefaultUpgrade, logger.NewNoOpLogger())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStorageUnavailable, apperrors.CodeOf(err))
}

func TestQueuedRequest_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	req := testRequest("req-1", models.TagTimeOffRequest, time.Now().UTC())
	require.NoError(t, s.PutRequest(ctx, req))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, req.Tag, got.Tag)
	assert.Equal(t, req.Request.URL, got.Request.URL)
	assert.Equal(t, req.Request.Method, got.Request.Method)
	assert.Equal(t, req.Request.Headers, got.Request.Headers)
	assert.Equal(t, req.Request.Body, got.Request.Body)
	assert.Equal(t, 0, got.Attempts)

	require.NoError(t, s.DeleteRequest(ctx, "req-1"))
	_, err = s.GetRequest(ctx, "req-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRequestsByTag_OrderedAndPartitioned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.PutRequest(ctx, testRequest("b", models.TagShiftChange, base.Add(time.Second))))
	require.NoError(t, s.PutRequest(ctx, testRequest("a", models.TagShiftChange, base)))
	require.NoError(t, s.PutRequest(ctx, testRequest("other", models.TagMessageSend, base)))

	list, err := s.ListRequestsByTag(ctx, models.TagShiftChange)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	n, err := s.CountRequestsByTag(ctx, models.TagMessageSend)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIncrementAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRequest(ctx, testRequest("req-1", models.TagDocumentUpload, time.Now().UTC())))

	n, err := s.IncrementAttempts(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.IncrementAttempts(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Everything besides the counter stays untouched.
	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, `{"days":3}`, got.Request.Body)

	_, err = s.IncrementAttempts(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkNotificationRead_ReceiptIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := models.StoredNotification{
		ID:        "n1",
		UserID:    7,
		Title:     "Turno modificato",
		Body:      "Il tuo turno di domani è cambiato",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, s.SaveNotification(ctx, n))

	require.NoError(t, s.MarkNotificationRead(ctx, "n1", time.Now()))
	require.NoError(t, s.MarkNotificationRead(ctx, "n1", time.Now().Add(time.Minute)))

	receipts, err := s.PendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "n1", receipts[0].NotificationID)
	assert.True(t, receipts[0].Read)

	got, err := s.GetNotification(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, got.Read)
}

func TestMarkNotificationRead_Missing(t *testing.T) {
	s := openTestStore(t)
	err := s.MarkNotificationRead(context.Background(), "ghost", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteReceipts_OnlyGivenIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, s.SaveNotification(ctx, models.StoredNotification{
			ID:        id,
			Title:     "t",
			Timestamp: time.Now().UTC(),
		}))
		require.NoError(t, s.MarkNotificationRead(ctx, id, time.Now()))
	}

	require.NoError(t, s.DeleteReceipts(ctx, []string{"n1", "n3"}))

	receipts, err := s.PendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "n2", receipts[0].NotificationID)
}

func TestNotifications_ByUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveNotification(ctx, models.StoredNotification{ID: "a", UserID: 7, Title: "x", Timestamp: now}))
	require.NoError(t, s.SaveNotification(ctx, models.StoredNotification{ID: "b", UserID: 9, Title: "y", Timestamp: now}))

	list, err := s.ListNotificationsByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestSubscription_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetSubscription(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	sub := models.PushSubscription{
		Endpoint:  "https://push.example.com/sub/abc",
		P256dhKey: "p256",
		AuthKey:   "auth",
		UserID:    7,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	got, err := s.GetSubscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub.Endpoint, got.Endpoint)
	assert.Equal(t, sub.UserID, got.UserID)
}

func TestDurability_AcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offline.db")
	ctx := context.Background()

	s, err := Open(testStoreConfig(path), DefaultUpgrade, logger.NewNoOpLogger())
	require.NoError(t, err)
	require.NoError(t, s.PutRequest(ctx, testRequest("req-1", models.TagTimeOffRequest, time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(testStoreConfig(path), DefaultUpgrade, logger.NewNoOpLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.TagTimeOffRequest, got.Tag)
	assert.True(t, s.Durable())
}
