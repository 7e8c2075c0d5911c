package apiclient

import "fmt"

// APIError is a response that is not a health envelope.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected response (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("unexpected response (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the endpoint does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}
