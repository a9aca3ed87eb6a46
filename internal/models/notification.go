// internal/models/notification.go
package models

import "time"

// StoredNotification is the durable local record of a delivered push
// notification. Records are kept for inbox/history semantics: the read flag
// is the only field that ever changes, and nothing deletes them besides the
// lifetime of the store itself.
type StoredNotification struct {
	ID        string    `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Icon      string    `json:"icon" db:"icon"`
	URL       string    `json:"url" db:"url"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Read      bool      `json:"read" db:"read"`
}

// ReadReceipt is a pending outbound fact: "notification X was read at time
// T". It is keyed by NotificationID, not a generated id, so re-marking the
// same notification overwrites in place and duplicate marks never produce
// duplicate network calls. Deleted only after the server acknowledges the
// batch that contained it.
type ReadReceipt struct {
	NotificationID string    `json:"notificationId" db:"notification_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Read           bool      `json:"read" db:"read"`
}

// PushSubscription mirrors the Web Push subscription registered with the
// server so it can be re-registered after a restart.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	P256dhKey string    `json:"p256dhKey" db:"p256dh_key"`
	AuthKey   string    `json:"authKey" db:"auth_key"`
	UserID    int64     `json:"userId" db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
