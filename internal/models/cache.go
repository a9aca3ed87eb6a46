// internal/models/cache.go
package models

import "time"

// CachedResponse is one entry in a cache generation, keyed by the exact
// request URL. Entries are append-only during normal operation; the only
// bulk-eviction path is deleting the whole generation at activation of a new
// worker version.
type CachedResponse struct {
	URL      string            `json:"url"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers"`
	Body     []byte            `json:"body"`
	StoredAt time.Time         `json:"storedAt"`
}

// Request destinations, used to pick the typed offline fallback.
type Destination string

const (
	DestinationNavigation Destination = "navigation"
	DestinationImage      Destination = "image"
	DestinationOther      Destination = "other"
)
