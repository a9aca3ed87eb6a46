// internal/notification/reconciler.go
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/models"
)

// OnlineFunc reports current connectivity. The reconciler never probes on its
// own; it asks the monitor.
type OnlineFunc func() bool

// Reconciler pushes pending read receipts to the server in batches. Receipts
// are deleted only for the exact ids the server acknowledged, so a failure
// leaves everything in place for the next trigger.
type Reconciler struct {
	notifications *NotificationStore
	client        *httpclient.Client
	receiptsURL   string
	online        OnlineFunc
	forceTimeout  time.Duration
	log           logger.Logger
}

func NewReconciler(ns *NotificationStore, receiptsURL string, requestTimeout, forceTimeout time.Duration, online OnlineFunc, log logger.Logger) *Reconciler {
	return &Reconciler{
		notifications: ns,
		client:        httpclient.NewClient(requestTimeout),
		receiptsURL:   receiptsURL,
		online:        online,
		forceTimeout:  forceTimeout,
		log:           log,
	}
}

// receiptBatch is the wire form of one reconciliation POST.
type receiptBatch struct {
	Receipts []models.ReadReceipt `json:"receipts"`
}

// ScheduleSync sends the full pending batch when online. Offline it is a
// no-op: the reconnect path or the notification-sync wake-up retries later.
func (r *Reconciler) ScheduleSync(ctx context.Context) error {
	if r.online != nil && !r.online() {
		r.log.Debug("Receipt sync skipped while offline", nil)
		return nil
	}
	return r.syncBatch(ctx)
}

// ForceSync runs one reconciliation attempt under a bounded timeout. It is
// the page-facing entry point: it reports failure instead of hanging.
func (r *Reconciler) ForceSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.forceTimeout)
	defer cancel()
	return r.syncBatch(ctx)
}

func (r *Reconciler) syncBatch(ctx context.Context) error {
	pending, err := r.notifications.PendingReceipts(ctx)
	if err != nil {
		return apperrors.NewReconcileFailedError(err)
	}
	if len(pending) == 0 {
		return nil
	}

	body, err := json.Marshal(receiptBatch{Receipts: pending})
	if err != nil {
		return apperrors.NewReconcileFailedError(err)
	}

	req, err := http.NewRequest(http.MethodPost, r.receiptsURL, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewReconcileFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.DoWithContext(ctx, req)
	if err != nil {
		return apperrors.NewReconcileFailedError(err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewReconcileFailedError(fmt.Errorf("server responded %d", resp.StatusCode))
	}

	// Delete exactly what was in the acknowledged batch. Receipts that
	// arrived mid-flight stay pending.
	sent := make([]string, 0, len(pending))
	for _, receipt := range pending {
		sent = append(sent, receipt.NotificationID)
	}
	if err := r.notifications.DeleteReceipts(ctx, sent); err != nil {
		return apperrors.NewReconcileFailedError(err)
	}

	metrics.ReceiptsSynced.Add(float64(len(sent)))
	r.log.Info("Read receipts reconciled", map[string]interface{}{"count": len(sent)})
	return nil
}
