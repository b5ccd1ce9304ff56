package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepError(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewStepError("upload-archive", cause)

	assert.Equal(t, "upload-archive", StepOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upload-archive")

	wrapped := fmt.Errorf("import acme/widgets: %w", err)
	assert.Equal(t, "upload-archive", StepOf(wrapped))

	assert.Nil(t, NewStepError("anything", nil))
	assert.Equal(t, "", StepOf(cause))
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      []byte
		retryable bool
	}{
		{name: "not found", status: 404, body: []byte("404: Not Found"), retryable: false},
		{name: "bad gateway", status: 502, body: nil, retryable: true},
		{name: "rate limited", status: 429, body: []byte("slow down"), retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUpstreamError("https://example.com/a.zip", tt.status, tt.body)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.retryable, err.Retryable())
			assert.Contains(t, err.Error(), fmt.Sprintf("%d", tt.status))
		})
	}

	long := NewUpstreamError("u", 500, []byte(strings.Repeat("x", 2048)))
	assert.Len(t, long.Snippet, maxSnippet)
}

func TestSentinels(t *testing.T) {
	assert.True(t, IsNonRetryable(NewNonRetryableError("bad request", ErrInvalidURL)))
	assert.True(t, errors.Is(NewNonRetryableError("bad request", ErrInvalidURL), ErrInvalidURL))
	assert.False(t, IsNonRetryable(ErrContentNotLocatable))
	assert.False(t, IsNonRetryable(nil))
	assert.False(t, errors.Is(ErrEmptyDownload, ErrArchiveFormat))
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrContentNotLocatable), ErrContentNotLocatable))
}
