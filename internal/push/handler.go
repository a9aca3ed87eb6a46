// internal/push/handler.go
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/metrics"
	"offline-worker/internal/models"
	"offline-worker/internal/notification"
)

// WindowClient abstracts the app windows a notification click can land in.
type WindowClient interface {
	// Windows lists the URLs of currently open app windows.
	Windows(ctx context.Context) ([]string, error)
	// Focus brings an already-open window to the front.
	Focus(ctx context.Context, url string) error
	// Open opens a new window at the URL.
	Open(ctx context.Context, url string) error
}

// Reconciler is the subset of the reconciliation client a click needs.
type Reconciler interface {
	ScheduleSync(ctx context.Context) error
}

// Handler processes inbound push deliveries and notification interactions.
// The persistence-before-display order is the point: a push that reaches the
// store is never lost even if display fails or the process dies.
type Handler struct {
	notifications *notification.NotificationStore
	notifier      Notifier
	windows       WindowClient
	reconciler    Reconciler
	schema        *gojsonschema.Schema
	log           logger.Logger
}

func NewHandler(ns *notification.NotificationStore, notifier Notifier, windows WindowClient, reconciler Reconciler, log logger.Logger) (*Handler, error) {
	schema, err := compilePayloadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile push payload schema: %w", err)
	}
	return &Handler{
		notifications: ns,
		notifier:      notifier,
		windows:       windows,
		reconciler:    reconciler,
		schema:        schema,
		log:           log,
	}, nil
}

// HandlePush validates, persists and displays one inbound push payload.
// Malformed payloads are logged and dropped; they never take the worker down.
func (h *Handler) HandlePush(ctx context.Context, raw []byte) error {
	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return h.drop(err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return h.drop(strings.Join(details, "; "))
	}

	var payload models.PushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return h.drop(err.Error())
	}
	payload.ApplyDefaults(time.Now().UTC())

	if err := h.notifications.Save(ctx, payload.ToStored()); err != nil {
		return err
	}

	err = h.notifier.Display(ctx, DisplayRequest{
		Title:              payload.Title,
		Body:               payload.Body,
		Icon:               payload.Icon,
		Badge:              payload.Badge,
		URL:                payload.URL,
		Tag:                payload.Tag,
		Actions:            []string{models.ActionOpen, models.ActionClose},
		RequireInteraction: payload.RequireInteraction,
		Silent:             payload.Silent,
		Renotify:           payload.Renotify,
	})
	if err != nil {
		// The notification is already durable; a display failure is not a
		// delivery failure.
		h.log.Warn("Notification display failed", map[string]interface{}{
			"notificationId": payload.ID,
			"error":          err.Error(),
		})
	}
	return nil
}

// HandleClick reacts to a notification interaction. The close action does
// nothing; the body or the open action marks the notification read, pushes
// the receipt towards the server, then focuses or opens the target window.
func (h *Handler) HandleClick(ctx context.Context, notificationID, action string) error {
	if action == models.ActionClose {
		return nil
	}

	stored, err := h.notifications.Get(ctx, notificationID)
	if err != nil {
		return err
	}

	if err := h.notifications.MarkRead(ctx, notificationID); err != nil {
		return err
	}

	if err := h.reconciler.ScheduleSync(ctx); err != nil {
		h.log.Warn("Immediate receipt sync failed, receipt stays pending", map[string]interface{}{
			"notificationId": notificationID,
			"error":          err.Error(),
		})
	}

	return h.focusOrOpen(ctx, stored.URL)
}

// focusOrOpen focuses an already-open window whose URL matches exactly, and
// opens a fresh one otherwise.
func (h *Handler) focusOrOpen(ctx context.Context, url string) error {
	open, err := h.windows.Windows(ctx)
	if err != nil {
		return err
	}
	for _, w := range open {
		if w == url {
			return h.windows.Focus(ctx, url)
		}
	}
	return h.windows.Open(ctx, url)
}

func (h *Handler) drop(details string) error {
	metrics.NotificationsDropped.Inc()
	err := apperrors.NewMalformedPushPayloadError(details)
	h.log.Warn("Push payload dropped", map[string]interface{}{"details": details})
	return err
}
