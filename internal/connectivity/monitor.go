// internal/connectivity/monitor.go
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"offline-worker/internal/common/config"
	"offline-worker/internal/common/httpclient"
	"offline-worker/internal/common/logger"
)

// Monitor probes the server health endpoint on an interval and publishes
// online/offline transitions. Reconnect listeners are where queued drains and
// the notification resync hang off; they are the fallback trigger for hosts
// without deferred wake-ups.
type Monitor struct {
	client    *httpclient.Client
	healthURL string
	interval  time.Duration
	log       logger.Logger

	mu        sync.Mutex
	online    bool
	listeners []func(online bool)
}

func NewMonitor(cfg config.ConnectivityConfig, healthURL string, log logger.Logger) *Monitor {
	return &Monitor{
		client:    httpclient.NewClient(time.Duration(cfg.ProbeTimeout) * time.Millisecond),
		healthURL: healthURL,
		interval:  time.Duration(cfg.ProbeInterval) * time.Millisecond,
		log:       log,
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnTransition registers a listener called on every state change with the
// new state. Listeners run synchronously from the probe loop.
func (m *Monitor) OnTransition(fn func(online bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start probes immediately and then on every tick until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs a single probe and publishes the transition if the state
// changed.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	online := m.probe(ctx)

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	listeners := append(([]func(bool))(nil), m.listeners...)
	m.mu.Unlock()

	if changed {
		if online {
			m.log.Info("Connectivity restored", map[string]interface{}{"healthUrl": m.healthURL})
		} else {
			m.log.Warn("Connectivity lost", map[string]interface{}{"healthUrl": m.healthURL})
		}
		for _, fn := range listeners {
			fn(online)
		}
	}
	return online
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequest(http.MethodGet, m.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.DoWithContext(ctx, req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
