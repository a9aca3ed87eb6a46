package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offline-worker/internal/common/config"
	"offline-worker/internal/common/database"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
)

func mockedManager(t *testing.T, origin string) (*Manager, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() { client.Close() })

	cfg := config.CacheConfig{
		Version:      "v3",
		Origin:       origin,
		FetchTimeout: 2000,
	}
	return NewManager(cfg, &database.RedisClient{Client: client}, logger.NewTestLogger(t)), mock
}

func TestLookup_RedisFailureReadsAsMiss(t *testing.T) {
	m, mock := mockedManager(t, "http://example.test")
	mock.ExpectGet("cache:v3:/app.js").SetErr(assert.AnError)

	_, err := m.Lookup(context.Background(), "/app.js")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCacheMiss, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntercept_StoreFailureStillServesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	m, mock := mockedManager(t, srv.URL)
	mock.ExpectGet("cache:v3:/app.js").RedisNil()
	mock.Regexp().ExpectSet("cache:v3:/app.js", `.*`, 0).SetErr(assert.AnError)

	resp, err := m.Intercept(context.Background(), FetchRequest{URL: "/app.js", Destination: models.DestinationOther})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(resp.Body))
}
