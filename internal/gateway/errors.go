package gateway

import (
	"errors"
	"fmt"
)

// Error taxonomy. All of these are recovered at the orchestrator or HTTP
// handler boundary; nothing propagates further than one user-visible notice.
var (
	// ErrMissingCredential means no API key is configured for the caller.
	ErrMissingCredential = errors.New("API key not configured")

	// ErrEmptyInput means the caller supplied no text to work with. Caught
	// before any network call.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidResponse means the backend returned a payload that does not
	// parse against the expected JSON schema (single-shot mode only).
	ErrInvalidResponse = errors.New("invalid response from completion backend")
)

// RateLimitError reports an exhausted quota with a retry hint.
type RateLimitError struct {
	RetryAfterMinutes int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("usage limit reached, retry in %d minute(s)", e.RetryAfterMinutes)
}

// IsRateLimited reports whether err is a quota rejection.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// UpstreamError reports a non-success HTTP status from the completion backend.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion backend returned status %d: %s", e.StatusCode, e.Body)
}
