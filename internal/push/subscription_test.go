package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
	"offline-worker/internal/store"
)

func TestSubscription_RegisterPersistsAndAnnounces(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := store.NewMemory()
	m := NewSubscriptionManager(s, srv.URL, 2*time.Second, logger.NewTestLogger(t))
	ctx := context.Background()

	sub := models.PushSubscription{
		Endpoint:  "https://push.example/ep/abc",
		P256dhKey: "p256dh",
		AuthKey:   "auth",
		UserID:    42,
	}
	require.NoError(t, m.Register(ctx, sub))
	assert.Equal(t, []string{http.MethodPost}, methods)

	saved, err := s.GetSubscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub.Endpoint, saved.Endpoint)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestSubscription_RegisterKeepsLocalCopyOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := store.NewMemory()
	m := NewSubscriptionManager(s, srv.URL, 2*time.Second, logger.NewTestLogger(t))

	err := m.Register(context.Background(), models.PushSubscription{Endpoint: "https://push.example/ep/abc"})
	require.Error(t, err)

	saved, err := s.GetSubscription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://push.example/ep/abc", saved.Endpoint)
}

func TestSubscription_ResumeWithoutStoredSubscription(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	m := NewSubscriptionManager(store.NewMemory(), srv.URL, 2*time.Second, logger.NewTestLogger(t))
	require.NoError(t, m.Resume(context.Background()))
	assert.Zero(t, calls)
}

func TestSubscription_ResumeReAnnounces(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := store.NewMemory()
	m := NewSubscriptionManager(s, srv.URL, 2*time.Second, logger.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, models.PushSubscription{Endpoint: "https://push.example/ep/abc"}))
	require.NoError(t, m.Resume(ctx))
	assert.Equal(t, 2, calls)
}
