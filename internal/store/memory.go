package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"offline-worker/internal/models"
)

// MemoryStore is the best-effort fallback used when the persistent store
// cannot open. Same contract, no durability: records are lost with the
// process, which the caller accepts in exchange for not crashing.
type MemoryStore struct {
	mu            sync.RWMutex
	requests      map[string]models.QueuedRequest
	notifications map[string]models.StoredNotification
	receipts      map[string]models.ReadReceipt
	subscription  *models.PushSubscription
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		requests:      make(map[string]models.QueuedRequest),
		notifications: make(map[string]models.StoredNotification),
		receipts:      make(map[string]models.ReadReceipt),
	}
}

func (s *MemoryStore) Durable() bool { return false }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) PutRequest(_ context.Context, req models.QueuedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*models.QueuedRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (s *MemoryStore) ListRequestsByTag(_ context.Context, tag models.OperationTag) ([]models.QueuedRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.QueuedRequest
	for _, req := range s.requests {
		if req.Tag == tag {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}

func (s *MemoryStore) CountRequestsByTag(_ context.Context, tag models.OperationTag) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, req := range s.requests {
		if req.Tag == tag {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IncrementAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return 0, ErrNotFound
	}
	req.Attempts++
	s.requests[id] = req
	return req.Attempts, nil
}

func (s *MemoryStore) SaveNotification(_ context.Context, n models.StoredNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = n
	return nil
}

func (s *MemoryStore) GetNotification(_ context.Context, id string) (*models.StoredNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context) ([]models.StoredNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.StoredNotification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sortNotifications(out)
	return out, nil
}

func (s *MemoryStore) ListNotificationsByUser(_ context.Context, userID int64) ([]models.StoredNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StoredNotification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sortNotifications(out)
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	s.notifications[id] = n
	s.receipts[id] = models.ReadReceipt{NotificationID: id, Timestamp: at.UTC(), Read: true}
	return nil
}

func (s *MemoryStore) PendingReceipts(_ context.Context) ([]models.ReadReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ReadReceipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) DeleteReceipts(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.receipts, id)
	}
	return nil
}

func (s *MemoryStore) SaveSubscription(_ context.Context, sub models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscription = &sub
	return nil
}

func (s *MemoryStore) GetSubscription(_ context.Context) (*models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.subscription == nil {
		return nil, ErrNotFound
	}
	sub := *s.subscription
	return &sub, nil
}

func sortNotifications(list []models.StoredNotification) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].ID < list[j].ID
		}
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}
