// internal/notification/store.go
package notification

import (
	"context"
	"time"

	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/models"
	"offline-worker/internal/store"
)

// NotificationStore is the inbox over the persistent store. Notifications are
// never deleted locally; the read flag is the only mutation.
type NotificationStore struct {
	store store.Store
	log   logger.Logger
}

func NewStore(s store.Store, log logger.Logger) *NotificationStore {
	return &NotificationStore{store: s, log: log}
}

func (ns *NotificationStore) Save(ctx context.Context, n models.StoredNotification) error {
	if err := ns.store.SaveNotification(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsStored.Inc()
	return nil
}

func (ns *NotificationStore) Get(ctx context.Context, id string) (*models.StoredNotification, error) {
	return ns.store.GetNotification(ctx, id)
}

func (ns *NotificationStore) GetAll(ctx context.Context) ([]models.StoredNotification, error) {
	return ns.store.ListNotifications(ctx)
}

func (ns *NotificationStore) GetByUser(ctx context.Context, userID int64) ([]models.StoredNotification, error) {
	return ns.store.ListNotificationsByUser(ctx, userID)
}

// MarkRead flips the read flag and upserts the pending receipt in one
// transaction. Marking an already-read notification overwrites the receipt in
// place, so duplicate marks never multiply network traffic.
func (ns *NotificationStore) MarkRead(ctx context.Context, id string) error {
	return ns.store.MarkNotificationRead(ctx, id, time.Now().UTC())
}

func (ns *NotificationStore) PendingReceipts(ctx context.Context) ([]models.ReadReceipt, error) {
	return ns.store.PendingReceipts(ctx)
}

func (ns *NotificationStore) DeleteReceipts(ctx context.Context, ids []string) error {
	return ns.store.DeleteReceipts(ctx, ids)
}
