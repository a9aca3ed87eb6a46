// Package errors provides the standardized error taxonomy for the
// offline-resilience layer. The shared policy: failures local to one queued
// item or one notification never abort processing of siblings, and nothing in
// this taxonomy is fatal to the worker.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeStorageUnavailable: the persistent store cannot open. Dependent
	// components degrade to best-effort in-memory operation, they never crash.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeNetworkFailure: a single fetch failed. Drives cache fallback or
	// queue retention, never fatal.
	ErrCodeNetworkFailure ErrorCode = "NETWORK_FAILURE"

	// ErrCodeMalformedPushPayload: an inbound push payload failed to parse or
	// validate. The event is logged and dropped.
	ErrCodeMalformedPushPayload ErrorCode = "MALFORMED_PUSH_PAYLOAD"

	// ErrCodeReplayRejected: a queued request replayed with a non-2xx status.
	// The record stays queued unless the rejection is permanent.
	ErrCodeReplayRejected ErrorCode = "REPLAY_REJECTED"

	// ErrCodeSyncRegistrationUnsupported: the host platform cannot schedule
	// deferred wake-ups. Logged once; the reconnect path takes over.
	ErrCodeSyncRegistrationUnsupported ErrorCode = "SYNC_REGISTRATION_UNSUPPORTED"

	ErrCodePrecacheFailed  ErrorCode = "PRECACHE_FAILED"
	ErrCodeCacheMiss       ErrorCode = "CACHE_MISS"
	ErrCodeReconcileFailed ErrorCode = "RECONCILE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is lets errors.Is match two StandardErrors by code.
func (e *StandardError) Is(target error) bool {
	var se *StandardError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// ==========================
// Error Constructors
// ==========================

// NewStorageUnavailableError creates the non-retryable open failure. The
// caller is expected to fall back to the in-memory store.
func NewStorageUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "Persistent store cannot be opened",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNetworkFailureError creates a retryable per-request network error.
func NewNetworkFailureError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetworkFailure,
		Message:   "Network fetch failed",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedPushPayloadError creates the drop-and-log payload error.
func NewMalformedPushPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedPushPayload,
		Message:   "Push payload failed to parse or validate",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReplayRejectedError records a non-2xx replay response. Retryable unless
// the status marks a permanent rejection (4xx other than 408/429).
func NewReplayRejectedError(requestID string, status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeReplayRejected,
		Message:   "Queued request rejected on replay",
		Details:   fmt.Sprintf("requestId: %s, status: %d", requestID, status),
		Retryable: !IsPermanentStatus(status),
		Timestamp: time.Now().UTC(),
	}
}

// NewSyncRegistrationUnsupportedError creates the log-once degradation error.
func NewSyncRegistrationUnsupportedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSyncRegistrationUnsupported,
		Message:   "Deferred wake-up registration not supported by host",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPrecacheFailedError fails the install step so a broken deployment never
// replaces a working cache generation.
func NewPrecacheFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePrecacheFailed,
		Message:   "Required asset could not be precached",
		Details:   fmt.Sprintf("url: %s, error: %s", url, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheMissError marks an exact-URL lookup miss in the active generation.
func NewCacheMissError(url string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheMiss,
		Message:   "URL not present in active cache generation",
		Details:   fmt.Sprintf("url: %s", url),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewReconcileFailedError creates a retryable read-receipt sync error.
func NewReconcileFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeReconcileFailed,
		Message:   "Read receipt reconciliation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// IsPermanentStatus reports whether an HTTP status marks a replay as
// permanently rejected: 4xx except 408 (timeout) and 429 (throttling).
func IsPermanentStatus(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != 408 && status != 429
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or "" when err is not standard.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
