// internal/models/request.go
package models

import "time"

// OperationTag identifies a category of deferred operation. It is used both
// as the wake-up registration key and as the partition key for queued
// requests.
type OperationTag string

const (
	TagTimeOffRequest OperationTag = "time-off-request-sync"
	TagShiftChange    OperationTag = "shift-change-sync"
	TagMessageSend    OperationTag = "message-send-sync"
	TagDocumentUpload OperationTag = "document-upload-sync"
	TagNotification   OperationTag = "notification-sync"
)

// UserFacingTags lists the tags whose successful replay produces a local
// confirmation notification. The notification-sync tag is internal.
var UserFacingTags = map[OperationTag]string{
	TagTimeOffRequest: "La tua richiesta di ferie è stata inviata",
	TagShiftChange:    "La tua richiesta di cambio turno è stata inviata",
	TagMessageSend:    "Il tuo messaggio è stato inviato",
	TagDocumentUpload: "Il tuo documento è stato caricato",
}

// KnownTags holds every tag the coordinator will accept.
var KnownTags = []OperationTag{
	TagTimeOffRequest,
	TagShiftChange,
	TagMessageSend,
	TagDocumentUpload,
	TagNotification,
}

// IsKnownTag reports whether tag is one of the fixed tag constants.
func IsKnownTag(tag OperationTag) bool {
	for _, t := range KnownTags {
		if t == tag {
			return true
		}
	}
	return false
}

// SerializedRequest is the wire form of a mutating HTTP request captured
// while offline. Headers are a plain mapping and the body is stored
// pre-stringified so the record survives any number of restarts unchanged.
type SerializedRequest struct {
	URL     string            `json:"url" db:"url"`
	Method  string            `json:"method" db:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty" db:"body"`
}

// QueuedRequest is a pending outbound fact: created on enqueue, deleted only
// after a confirmed successful replay, never mutated in place except for the
// attempt counter.
type QueuedRequest struct {
	ID         string            `json:"id" db:"id"`
	Tag        OperationTag      `json:"tag" db:"tag"`
	Request    SerializedRequest `json:"request"`
	EnqueuedAt time.Time         `json:"enqueuedAt" db:"enqueued_at"`
	Attempts   int               `json:"attempts" db:"attempts"`
}
