// internal/models/push.go
package models

import "time"

// PushPayload is the server-sent JSON contract for an inbound push event.
// Optional fields have documented defaults applied by ApplyDefaults.
type PushPayload struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	URL                string `json:"url,omitempty"`
	UserID             int64  `json:"userId,omitempty"`
	Timestamp          int64  `json:"timestamp,omitempty"` // unix milliseconds
	Type               string `json:"type,omitempty"`
	RequireInteraction bool   `json:"requireInteraction,omitempty"`
	Silent             bool   `json:"silent,omitempty"`
	Renotify           bool   `json:"renotify,omitempty"`
	Tag                string `json:"tag,omitempty"`
}

// Defaults for optional push payload fields.
const (
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
	DefaultURL   = "/"
	DefaultType  = "generic"
)

// ApplyDefaults fills in the documented defaults for absent optional fields.
func (p *PushPayload) ApplyDefaults(now time.Time) {
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Badge == "" {
		p.Badge = DefaultBadge
	}
	if p.URL == "" {
		p.URL = DefaultURL
	}
	if p.Type == "" {
		p.Type = DefaultType
	}
	if p.Timestamp == 0 {
		p.Timestamp = now.UnixMilli()
	}
	if p.Tag == "" {
		p.Tag = p.ID
	}
}

// Time returns the payload timestamp as a time.Time.
func (p *PushPayload) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// ToStored converts the payload into its durable local record, unread.
func (p *PushPayload) ToStored() StoredNotification {
	return StoredNotification{
		ID:        p.ID,
		UserID:    p.UserID,
		Title:     p.Title,
		Body:      p.Body,
		Icon:      p.Icon,
		URL:       p.URL,
		Timestamp: p.Time(),
		Read:      false,
	}
}

// Notification actions offered on display.
const (
	ActionOpen  = "open"
	ActionClose = "close"
)
