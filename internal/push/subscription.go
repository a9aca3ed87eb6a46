// internal/push/subscription.go
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
	"offline-worker/internal/store"
)

// SubscriptionManager registers the push subscription with the server and
// keeps a local copy so re-registration survives restarts.
type SubscriptionManager struct {
	store           store.Store
	client          *httpclient.Client
	subscriptionURL string
	log             logger.Logger
}

func NewSubscriptionManager(s store.Store, subscriptionURL string, timeout time.Duration, log logger.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		store:           s,
		client:          httpclient.NewClient(timeout),
		subscriptionURL: subscriptionURL,
		log:             log,
	}
}

// Register persists the subscription locally first, then announces it to the
// server. A server failure leaves the local copy in place for Resume.
func (m *SubscriptionManager) Register(ctx context.Context, sub models.PushSubscription) error {
	if sub.Endpoint == "" {
		return errors.New("subscription endpoint is required")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	if err := m.store.SaveSubscription(ctx, sub); err != nil {
		return err
	}
	return m.announce(ctx, http.MethodPost, sub)
}

// Unregister tells the server to stop delivering to the subscription.
func (m *SubscriptionManager) Unregister(ctx context.Context) error {
	sub, err := m.store.GetSubscription(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return m.announce(ctx, http.MethodDelete, *sub)
}

// Resume re-announces the locally persisted subscription after a restart.
// Absence of a stored subscription is not an error.
func (m *SubscriptionManager) Resume(ctx context.Context) error {
	sub, err := m.store.GetSubscription(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Debug("No stored push subscription to resume", nil)
			return nil
		}
		return err
	}
	return m.announce(ctx, http.MethodPost, *sub)
}

func (m *SubscriptionManager) announce(ctx context.Context, method string, sub models.PushSubscription) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(method, m.subscriptionURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("subscription endpoint responded %d", resp.StatusCode)
	}

	m.log.Info("Push subscription announced", map[string]interface{}{
		"method":   method,
		"endpoint": sub.Endpoint,
	})
	return nil
}
