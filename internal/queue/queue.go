// internal/queue/queue.go
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/models"
	"offline-worker/internal/store"
)

// Queue persists mutating requests that failed while offline, partitioned by
// operation tag. Records are created on enqueue and deleted only after a
// confirmed successful replay; duplicate content is allowed (dedup, when
// needed, is the caller's or the server's responsibility).
type Queue struct {
	store store.Store
	log   logger.Logger
}

func New(s store.Store, log logger.Logger) *Queue {
	return &Queue{
		store: s,
		log:   log.WithFields(map[string]interface{}{"component": "request-queue"}),
	}
}

// Enqueue stores the serialized request under a fresh unique id and returns
// the durable record.
func (q *Queue) Enqueue(ctx context.Context, tag models.OperationTag, req models.SerializedRequest) (models.QueuedRequest, error) {
	if !models.IsKnownTag(tag) {
		return models.QueuedRequest{}, fmt.Errorf("unknown operation tag %q", tag)
	}

	now := time.Now().UTC()
	record := models.QueuedRequest{
		ID:         fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.New().String()[:8]),
		Tag:        tag,
		Request:    req,
		EnqueuedAt: now,
	}

	if err := q.store.PutRequest(ctx, record); err != nil {
		return models.QueuedRequest{}, fmt.Errorf("enqueue %s: %w", tag, err)
	}

	q.log.Info("request queued", map[string]interface{}{
		"id":     record.ID,
		"tag":    string(tag),
		"method": req.Method,
		"url":    req.URL,
	})
	q.updateDepth(ctx, tag)
	return record, nil
}

// ListByTag returns the tag's pending records oldest-first, the replay order.
func (q *Queue) ListByTag(ctx context.Context, tag models.OperationTag) ([]models.QueuedRequest, error) {
	return q.store.ListRequestsByTag(ctx, tag)
}

// Remove deletes a record after its replay was confirmed successful (or the
// retry policy dropped it). Removing an absent id is a no-op.
func (q *Queue) Remove(ctx context.Context, id string, tag models.OperationTag) error {
	if err := q.store.DeleteRequest(ctx, id); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	q.updateDepth(ctx, tag)
	return nil
}

// CountByTag reports how many records are pending for the tag.
func (q *Queue) CountByTag(ctx context.Context, tag models.OperationTag) (int, error) {
	return q.store.CountRequestsByTag(ctx, tag)
}

// RecordFailure bumps the attempt counter after a failed replay and returns
// the new count.
func (q *Queue) RecordFailure(ctx context.Context, id string) (int, error) {
	return q.store.IncrementAttempts(ctx, id)
}

func (q *Queue) updateDepth(ctx context.Context, tag models.OperationTag) {
	if n, err := q.store.CountRequestsByTag(ctx, tag); err == nil {
		metrics.QueueDepth.WithLabelValues(string(tag)).Set(float64(n))
	}
}
