// internal/dispatch/dispatch.go

// Package dispatch maps host event kinds to handler funcs. The table is the
// single place event routing lives, so the core logic stays testable without
// the host event system.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"offline-worker/internal/common/logger"
)

// EventKind identifies one kind of host event.
type EventKind string

const (
	EventFetch             EventKind = "fetch"
	EventPush              EventKind = "push"
	EventSync              EventKind = "sync"
	EventMessage           EventKind = "message"
	EventNotificationClick EventKind = "notificationclick"
	EventOnline            EventKind = "online"
)

// HandlerFunc processes one event payload and returns an optional reply.
type HandlerFunc func(ctx context.Context, payload []byte) (interface{}, error)

// Table holds the event routing. Registration happens once at startup;
// dispatch is concurrent after that.
type Table struct {
	mu       sync.RWMutex
	handlers map[EventKind]HandlerFunc
	log      logger.Logger
}

func NewTable(log logger.Logger) *Table {
	return &Table{
		handlers: make(map[EventKind]HandlerFunc),
		log:      log,
	}
}

// Register binds a handler to an event kind, replacing any previous binding.
func (t *Table) Register(kind EventKind, fn HandlerFunc) {
	t.mu.Lock()
	t.handlers[kind] = fn
	t.mu.Unlock()
}

// Dispatch routes a payload to the handler for its kind.
func (t *Table) Dispatch(ctx context.Context, kind EventKind, payload []byte) (interface{}, error) {
	t.mu.RLock()
	fn, ok := t.handlers[kind]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for event kind %q", kind)
	}

	reply, err := fn(ctx, payload)
	if err != nil {
		t.log.Warn("Event handler failed", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
	}
	return reply, err
}

// Kinds returns the registered event kinds.
func (t *Table) Kinds() []EventKind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	kinds := make([]EventKind, 0, len(t.handlers))
	for k := range t.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}
