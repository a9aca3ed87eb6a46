// internal/push/windows.go
package push

import (
	"context"
	"sync"

	"offline-worker/internal/common/logger"
)

// LogWindowClient is the headless WindowClient: it records which windows are
// notionally open and logs focus/open decisions. It doubles as the test fake.
type LogWindowClient struct {
	log logger.Logger

	mu      sync.Mutex
	open    []string
	focused []string
}

func NewLogWindowClient(log logger.Logger) *LogWindowClient {
	return &LogWindowClient{log: log}
}

// SetOpen replaces the set of open window URLs.
func (w *LogWindowClient) SetOpen(urls ...string) {
	w.mu.Lock()
	w.open = append([]string(nil), urls...)
	w.mu.Unlock()
}

func (w *LogWindowClient) Windows(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.open...), nil
}

func (w *LogWindowClient) Focus(ctx context.Context, url string) error {
	w.mu.Lock()
	w.focused = append(w.focused, url)
	w.mu.Unlock()
	w.log.Info("Window focused", map[string]interface{}{"url": url})
	return nil
}

func (w *LogWindowClient) Open(ctx context.Context, url string) error {
	w.mu.Lock()
	w.open = append(w.open, url)
	w.mu.Unlock()
	w.log.Info("Window opened", map[string]interface{}{"url": url})
	return nil
}

// Focused returns every URL Focus was called with.
func (w *LogWindowClient) Focused() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.focused...)
}

// Opened returns the current open window URLs.
func (w *LogWindowClient) Opened() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.open...)
}
