package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: offline-worker
  version: "1.0.0"
redis:
  address: "localhost:6379"
cache:
  version: "v3"
server:
  base_url: "https://app.example.test"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "offline-worker.db", cfg.Store.Path)
	assert.Equal(t, 2, cfg.Store.SchemaVersion)
	assert.Equal(t, 8, cfg.Sync.MaxAttempts)
	assert.Equal(t, ":8940", cfg.Channel.ListenAddress)
	assert.Equal(t, 10000, cfg.Channel.FetchTimeout)
	assert.Equal(t, 5000, cfg.Store.BusyTimeout)
	assert.Equal(t, "log", cfg.Push.Notifier)
	assert.Equal(t, "/offline.html", cfg.Cache.OfflinePage)

	// Origin falls back to the server base URL when unset.
	assert.Equal(t, "https://app.example.test", cfg.Cache.Origin)
	assert.Equal(t, "cache:v3", cfg.Cache.CacheName())
	assert.Equal(t, "https://app.example.test/api/notifications/read-receipts", cfg.Server.ReceiptsURL())
	assert.Equal(t, "https://app.example.test/api/health", cfg.Server.HealthURL())
}

func TestLoadFromFile_MissingCacheVersionFails(t *testing.T) {
	path := writeConfig(t, `
redis:
  address: "localhost:6379"
server:
  base_url: "https://app.example.test"
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.version")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, GetDuration(5000))
}
