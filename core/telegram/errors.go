package telegram

import (
	"fmt"
	"net/http"
	"time"
)

// APIError is a failed Bot API or preview request.
type APIError struct {
	// Method is the API method or page requested.
	Method string
	// StatusCode is the HTTP status.
	StatusCode int
	// Description is the server's explanation.
	Description string
	// RetryAfterSeconds is the flood-wait the server asked for, 0 if none.
	RetryAfterSeconds int
}

func (e *APIError) Error() string {
	if e.RetryAfterSeconds > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.StatusCode, e.Description, e.RetryAfterSeconds)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.StatusCode, e.Description)
}

// Retryable reports flood-waits and server-side failures as transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500 ||
		e.RetryAfterSeconds > 0
}

// RetryAfter returns the server-specified wait.
func (e *APIError) RetryAfter() time.Duration {
	return time.Duration(e.RetryAfterSeconds) * time.Second
}

// IsFloodWait reports whether the server throttled the request.
func (e *APIError) IsFloodWait() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.RetryAfterSeconds > 0
}
