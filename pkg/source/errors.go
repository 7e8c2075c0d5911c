package source

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/marmos91/ferry/pkg/transfer"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// StatusError is a non-success response from the file-store.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound returns true for 404 responses.
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsRetryable returns true for 429 and 5xx responses.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// classify wraps a StatusError with its transfer error class.
func classify(e *StatusError) error {
	switch {
	case e.IsNotFound():
		return fmt.Errorf("%w: %w", transfer.ErrNotFound, e)
	case e.IsRetryable():
		return fmt.Errorf("%w: %w", transfer.ErrTransient, e)
	default:
		return e
	}
}
