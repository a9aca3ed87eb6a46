package store

import (
	"context"
	"errors"
	"time"

	"offline-worker/internal/models"
)

// ErrNotFound is returned when a keyed lookup matches no record.
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract shared by the durable SQLite
// implementation and the degraded in-memory fallback. Every method is wrapped
// in a transaction scoped to the tables it touches; two callers working on
// disjoint partitions (e.g. different tags) may interleave freely and the
// transaction layer serializes any accidental overlap.
type Store interface {
	// --- queued requests ---

	PutRequest(ctx context.Context, req models.QueuedRequest) error
	GetRequest(ctx context.Context, id string) (*models.QueuedRequest, error)
	// ListRequestsByTag returns records ordered by enqueued_at ascending.
	ListRequestsByTag(ctx context.Context, tag models.OperationTag) ([]models.QueuedRequest, error)
	DeleteRequest(ctx context.Context, id string) error
	CountRequestsByTag(ctx context.Context, tag models.OperationTag) (int, error)
	// IncrementAttempts bumps the attempt counter after a failed replay and
	// returns the new value. The rest of the record never changes in place.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// --- notifications ---

	SaveNotification(ctx context.Context, n models.StoredNotification) error
	GetNotification(ctx context.Context, id string) (*models.StoredNotification, error)
	ListNotifications(ctx context.Context) ([]models.StoredNotification, error)
	ListNotificationsByUser(ctx context.Context, userID int64) ([]models.StoredNotification, error)
	// MarkNotificationRead sets the read flag and upserts the pending read
	// receipt in one transaction, keyed by notification id so duplicate marks
	// collapse into a single receipt.
	MarkNotificationRead(ctx context.Context, id string, at time.Time) error

	// --- read receipts ---

	PendingReceipts(ctx context.Context) ([]models.ReadReceipt, error)
	// DeleteReceipts removes exactly the given ids, never a blanket clear.
	DeleteReceipts(ctx context.Context, ids []string) error

	// --- push subscription ---

	SaveSubscription(ctx context.Context, sub models.PushSubscription) error
	GetSubscription(ctx context.Context) (*models.PushSubscription, error)

	// Durable reports whether records survive a restart. The in-memory
	// fallback returns false so callers can log the degraded mode.
	Durable() bool

	Close() error
}
