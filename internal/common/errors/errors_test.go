package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplayRejected_RetryableFollowsStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{422, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tc := range tests {
		err := NewReplayRejectedError("req-1", tc.status)
		assert.Equal(t, ErrCodeReplayRejected, CodeOf(err), "status %d", tc.status)
		assert.Equal(t, tc.retryable, IsRetryable(err), "status %d", tc.status)
	}
}

func TestStorageUnavailable_NotRetryable(t *testing.T) {
	err := NewStorageUnavailableError(fmt.Errorf("disk full"))

	assert.Equal(t, ErrCodeStorageUnavailable, CodeOf(err))
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Details, "disk full")
}
