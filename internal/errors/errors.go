// Package errors provides shared error types used across the fetch, import and retrieval packages.
// This package exists to avoid import cycles between importer and its subpackages.
package errors

import (
	"errors"
	"fmt"
)

// NonRetryableError represents an error that should not be retried.
// The relay client stops its retry loop as soon as it sees one.
type NonRetryableError struct {
	message string
	cause   error
}

// Error implements the error interface.
func (e *NonRetryableError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying cause error for error unwrapping.
func (e *NonRetryableError) Unwrap() error {
	return e.cause
}

// Is checks if the target error is a NonRetryableError.
func (e *NonRetryableError) Is(target error) bool {
	_, ok := target.(*NonRetryableError)
	return ok
}

// NewNonRetryableError creates a new non-retryable error with a message and optional cause.
func NewNonRetryableError(message string, cause error) error {
	return &NonRetryableError{
		message: message,
		cause:   cause,
	}
}

// IsNonRetryable checks if an error is non-retryable.
func IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	var nonRetryableErr *NonRetryableError
	return errors.As(err, &nonRetryableErr)
}

// maxSnippet caps how much of an upstream body is kept for diagnostics.
const maxSnippet = 512

// UpstreamError is a non-2xx answer from the relay or the search service.
type UpstreamError struct {
	URL     string
	Status  int
	Snippet string
}

// NewUpstreamError builds an UpstreamError keeping at most the first 512 bytes of body.
func NewUpstreamError(url string, status int, body []byte) *UpstreamError {
	if len(body) > maxSnippet {
		body = body[:maxSnippet]
	}
	return &UpstreamError{URL: url, Status: status, Snippet: string(body)}
}

func (e *UpstreamError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("upstream returned status %d for %s", e.Status, e.URL)
	}
	return fmt.Sprintf("upstream returned status %d for %s: %s", e.Status, e.URL, e.Snippet)
}

// Retryable reports whether the status is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.Status >= 500 || e.Status == 429
}

// StepError identifies which import step failed. Recovery differs per step,
// so callers surface Step to the user.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("import step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err with the name of the failing step. Nil stays nil.
func NewStepError(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// StepOf returns the failing step name carried by err, or "" when there is none.
func StepOf(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// Sentinel errors for the import and retrieval paths.
var (
	// ErrArchiveFormat means the bytes were downloaded but are not a readable zip archive.
	ErrArchiveFormat = errors.New("archive is corrupt or not a zip file")

	// ErrEmptyDownload means the relay answered 2xx with an empty body.
	ErrEmptyDownload = errors.New("downloaded archive is empty")

	// ErrContentNotLocatable is returned for nodes that carry no internal archive path
	// or whose entry has no archive blob.
	ErrContentNotLocatable = errors.New("content not locatable")

	// ErrInvalidURL rejects non-http(s) targets before any request is made.
	ErrInvalidURL = errors.New("url must use http or https")
)
