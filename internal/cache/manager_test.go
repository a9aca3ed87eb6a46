package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/config"
	"offline-worker/internal/common/database"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
)

func testManager(t *testing.T, origin string) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	cfg := config.CacheConfig{
		Version:         "v3",
		Origin:          origin,
		OfflinePage:     "/offline.html",
		PlaceholderIcon: "/icons/placeholder.png",
		FetchTimeout:    2000,
	}
	return NewManager(cfg, rdb, logger.NewTestLogger(t)), mr
}

func TestPrecache_StoresManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, m.Precache(ctx, []string{"/", "/offline.html", "/app.js"}))

	resp, err := m.Lookup(ctx, "/offline.html")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, string(resp.Body), "/offline.html")
}

func TestPrecache_AbortsOnMissingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.css" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL)
	err := m.Precache(context.Background(), []string{"/", "/missing.css"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePrecacheFailed, apperrors.CodeOf(err))
}

func TestIntercept_CacheFirstWithUnreachableNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("cached body"))
	}))

	m, _ := testManager(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, m.Precache(ctx, []string{"/app.js"}))

	// The upstream going away must not matter for anything already cached.
	srv.Close()

	resp, err := m.Intercept(ctx, FetchRequest{URL: "/app.js", Destination: models.DestinationOther})
	require.NoError(t, err)
	assert.Equal(t, "cached body", string(resp.Body))
}

func TestIntercept_StoresSuccessfulSameOriginFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	m, _ := testManager(t, srv.URL)
	ctx := context.Background()

	resp, err := m.Intercept(ctx, FetchRequest{URL: "/fresh.js", Destination: models.DestinationOther})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))

	cached, err := m.Lookup(ctx, "/fresh.js")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(cached.Body))
}

func TestIntercept_NavigationFallbackServesOfflinePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("offline page"))
	}))

	m, _ := testManager(t, srv.URL)
	ctx := context.Background()
	require.NoError(t, m.Precache(ctx, []string{"/offline.html"}))
	srv.Close()

	resp, err := m.Intercept(ctx, FetchRequest{URL: "/schedule", Destination: models.DestinationNavigation})
	require.NoError(t, err)
	assert.Equal(t, "offline page", string(resp.Body))
}

func TestIntercept_OtherFallbackIsSynthetic503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	m, _ := testManager(t, srv.URL)
	srv.Close()

	resp, err := m.Intercept(context.Background(), FetchRequest{URL: "/api/shifts", Destination: models.DestinationOther})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Contains(t, string(resp.Body), "offline")
}

func TestActivate_EvictsOtherGenerations(t *testing.T) {
	m, mr := testManager(t, "http://example.test")
	ctx := context.Background()

	require.NoError(t, mr.Set("cache:v2:/app.js", `{"url":"/app.js","status":200}`))
	require.NoError(t, mr.Set("cache:v3:/app.js", `{"url":"/app.js","status":200}`))
	require.NoError(t, mr.Set("cache:v1:/old.css", `{"url":"/old.css","status":200}`))

	require.NoError(t, m.Activate(ctx))

	assert.False(t, mr.Exists("cache:v2:/app.js"))
	assert.False(t, mr.Exists("cache:v1:/old.css"))
	assert.True(t, mr.Exists("cache:v3:/app.js"))
}
