// internal/lifecycle/lifecycle.go
package lifecycle

import (
	"context"
	"sync"

	"offline-worker/internal/cache"
	"offline-worker/internal/common/config"
	"offline-worker/internal/common/logger"
)

// Manager runs the install/activate sequence of a worker version. Install
// precaches the fixed manifest and aborts on any failure so a broken build
// never replaces a working generation; Activate evicts every stale
// generation.
type Manager struct {
	cache *cache.Manager
	cfg   config.CacheConfig
	log   logger.Logger
}

func NewManager(c *cache.Manager, cfg config.CacheConfig, log logger.Logger) *Manager {
	return &Manager{cache: c, cfg: cfg, log: log}
}

// Install precaches the configured asset manifest.
func (m *Manager) Install(ctx context.Context) error {
	m.log.Info("Installing", map[string]interface{}{
		"generation": m.cfg.CacheName(),
		"assets":     len(m.cfg.PrecacheURLs),
	})
	return m.cache.Precache(ctx, m.cfg.PrecacheURLs)
}

// Activate deletes every cache generation except the active one.
func (m *Manager) Activate(ctx context.Context) error {
	return m.cache.Activate(ctx)
}

// PromptState tracks the install-prompt availability.
type PromptState string

const (
	PromptNone      PromptState = "none"
	PromptAvailable PromptState = "available"
	PromptConsumed  PromptState = "consumed"
)

// InstallPrompt holds the install-prompt state with the legal transitions
// none -> available -> consumed. Illegal transitions are ignored and
// reported.
type InstallPrompt struct {
	mu    sync.Mutex
	state PromptState
}

func NewInstallPrompt() *InstallPrompt {
	return &InstallPrompt{state: PromptNone}
}

func (p *InstallPrompt) State() PromptState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// MarkAvailable records that the host offered an install prompt. Only valid
// from the none state.
func (p *InstallPrompt) MarkAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PromptNone {
		return false
	}
	p.state = PromptAvailable
	return true
}

// Consume uses the prompt. Only valid while available.
func (p *InstallPrompt) Consume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PromptAvailable {
		return false
	}
	p.state = PromptConsumed
	return true
}
