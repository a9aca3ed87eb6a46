// internal/cache/manager.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"offline-worker/internal/common/config"
	"offline-worker/internal/common/database"
	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/models"
)

// FetchRequest is one intercepted fetch. Destination selects the typed
// offline fallback when both cache and network fail.
type FetchRequest struct {
	URL         string             `json:"url"`
	Destination models.Destination `json:"destination,omitempty"`
}

// Manager owns the versioned cache generations in Redis. Keys are
// "cache:<version>:<url>"; the active generation is the only one written to,
// and Activate deletes every other generation. There is no per-entry expiry.
type Manager struct {
	cfg    config.CacheConfig
	redis  *database.RedisClient
	client *httpclient.Client
	log    logger.Logger
}

func NewManager(cfg config.CacheConfig, redis *database.RedisClient, log logger.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		redis:  redis,
		client: httpclient.NewClient(time.Duration(cfg.FetchTimeout) * time.Millisecond),
		log:    log,
	}
}

// Precache fetches every manifest asset into the active generation. Any
// single failure aborts the whole pass so a broken deployment never replaces
// a working generation.
func (m *Manager) Precache(ctx context.Context, manifest []string) error {
	for _, asset := range manifest {
		resp, err := m.fetch(ctx, asset)
		if err != nil {
			return apperrors.NewPrecacheFailedError(asset, err)
		}
		if resp.Status != http.StatusOK {
			return apperrors.NewPrecacheFailedError(asset, fmt.Errorf("unexpected status %d", resp.Status))
		}
		if err := m.put(ctx, resp); err != nil {
			return apperrors.NewPrecacheFailedError(asset, err)
		}
	}

	m.log.Info("Precache complete", map[string]interface{}{
		"generation": m.cfg.CacheName(),
		"assets":     len(manifest),
	})
	return nil
}

// Intercept serves a fetch cache-first. On miss it goes to network, storing
// successful same-origin responses in the active generation before returning.
// When the network is unreachable it serves the typed offline fallback.
func (m *Manager) Intercept(ctx context.Context, req FetchRequest) (*models.CachedResponse, error) {
	dest := string(req.Destination)

	cached, err := m.Lookup(ctx, req.URL)
	if err == nil {
		metrics.CacheHits.WithLabelValues(dest).Inc()
		return cached, nil
	}

	metrics.CacheMisses.WithLabelValues(dest).Inc()

	resp, err := m.fetch(ctx, req.URL)
	if err != nil {
		m.log.Warn("Network fetch failed, serving offline fallback", map[string]interface{}{
			"url":         req.URL,
			"destination": dest,
			"error":       err.Error(),
		})
		metrics.CacheFallbacks.WithLabelValues(dest).Inc()
		return m.fallback(ctx, req.Destination)
	}

	if m.cacheable(resp) {
		if err := m.put(ctx, resp); err != nil {
			m.log.Warn("Failed to store fetched response", map[string]interface{}{
				"url":   req.URL,
				"error": err.Error(),
			})
		}
	}
	return resp, nil
}

// Activate deletes every generation whose version tag differs from the
// active one. This is the sole bulk-eviction path.
func (m *Manager) Activate(ctx context.Context) error {
	keep := m.cfg.CacheName() + ":"

	var stale []string
	iter := m.redis.Client.Scan(ctx, 0, "cache:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if !strings.HasPrefix(key, keep) {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to enumerate cache generations: %w", err)
	}

	if len(stale) > 0 {
		if err := m.redis.Del(ctx, stale...); err != nil {
			return fmt.Errorf("failed to delete stale generations: %w", err)
		}
	}

	m.log.Info("Cache generations activated", map[string]interface{}{
		"generation": m.cfg.CacheName(),
		"evicted":    len(stale),
	})
	return nil
}

// Lookup returns the entry for the exact URL in the active generation.
func (m *Manager) Lookup(ctx context.Context, rawURL string) (*models.CachedResponse, error) {
	raw, err := m.redis.Get(ctx, m.key(rawURL))
	if err != nil {
		return nil, apperrors.NewCacheMissError(rawURL)
	}
	var resp models.CachedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, apperrors.NewCacheMissError(rawURL)
	}
	return &resp, nil
}

func (m *Manager) put(ctx context.Context, resp *models.CachedResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}
	return m.redis.Set(ctx, m.key(resp.URL), raw, 0)
}

func (m *Manager) key(rawURL string) string {
	return m.cfg.CacheName() + ":" + rawURL
}

func (m *Manager) fetch(ctx context.Context, rawURL string) (*models.CachedResponse, error) {
	req, err := http.NewRequest(http.MethodGet, m.absolute(rawURL), nil)
	if err != nil {
		return nil, apperrors.NewNetworkFailureError(rawURL, err)
	}

	httpResp, err := m.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, apperrors.NewNetworkFailureError(rawURL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkFailureError(rawURL, err)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for name := range httpResp.Header {
		headers[name] = httpResp.Header.Get(name)
	}

	return &models.CachedResponse{
		URL:      rawURL,
		Status:   httpResp.StatusCode,
		Headers:  headers,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

// cacheable reports whether a fetched response may enter the generation:
// successful, same-origin, and not carrying credentials.
func (m *Manager) cacheable(resp *models.CachedResponse) bool {
	if resp.Status != http.StatusOK {
		return false
	}
	if _, ok := resp.Headers["Set-Cookie"]; ok {
		return false
	}
	return m.sameOrigin(resp.URL)
}

func (m *Manager) sameOrigin(rawURL string) bool {
	if strings.HasPrefix(rawURL, "/") {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	origin, err := url.Parse(m.cfg.Origin)
	if err != nil {
		return false
	}
	return parsed.Scheme == origin.Scheme && parsed.Host == origin.Host
}

func (m *Manager) absolute(rawURL string) string {
	if strings.HasPrefix(rawURL, "/") {
		return strings.TrimSuffix(m.cfg.Origin, "/") + rawURL
	}
	return rawURL
}

// fallback serves the typed offline response: the precached offline page for
// navigations, the placeholder icon for images, and a synthetic 503 for
// everything else.
func (m *Manager) fallback(ctx context.Context, dest models.Destination) (*models.CachedResponse, error) {
	switch dest {
	case models.DestinationNavigation:
		if page, err := m.Lookup(ctx, m.cfg.OfflinePage); err == nil {
			return page, nil
		}
	case models.DestinationImage:
		if icon, err := m.Lookup(ctx, m.cfg.PlaceholderIcon); err == nil {
			return icon, nil
		}
	}

	return &models.CachedResponse{
		Status:   http.StatusServiceUnavailable,
		Headers:  map[string]string{"Content-Type": "application/json"},
		Body:     []byte(`{"error":"offline","message":"Nessuna connessione disponibile"}`),
		StoredAt: time.Now().UTC(),
	}, nil
}
