package llm

import (
	"errors"
	"fmt"
)

// ErrTimeout marks a request that hit the network deadline. Callers match
// it with errors.Is; it is never retried.
var ErrTimeout = errors.New("llm request timed out")

// APIError is a provider rejection or a malformed provider response.
// StatusCode is 0 when no HTTP status applies (transport failures,
// unparseable success bodies).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm api error: %s", e.Message)
}

// retryable reports whether the provider failure is worth another
// attempt: only 5xx server-side errors are.
func (e *APIError) retryable() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
