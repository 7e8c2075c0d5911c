package transfer

import (
	"errors"
	"fmt"
)

// Error classes. Collaborator clients wrap their failures with these so the
// pipelines can classify them with errors.Is.
var (
	// ErrNotFound means the source bytes or file no longer exist. Retrying
	// cannot help.
	ErrNotFound = errors.New("not found")

	// ErrTransient marks a failure worth retrying (network reset, service
	// unavailable, deadline exceeded).
	ErrTransient = errors.New("transient failure")

	// ErrCompensationRejected is returned when the catalog answers a delete
	// with ok=false.
	ErrCompensationRejected = errors.New("catalog rejected part deletion")

	// ErrCatalogRejected is returned when the catalog answers a part
	// creation with ok=false.
	ErrCatalogRejected = errors.New("catalog rejected part record")

	// ErrMalformedMessage marks a queue message that cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// StageError ties a failure to the pipeline stage that produced it without
// hiding the class of the underlying error from errors.Is.
type StageError struct {
	Stage  State
	TaskID string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.TaskID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage State, taskID string, err error) error {
	return &StageError{Stage: stage, TaskID: taskID, Err: err}
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// sourceError marks a failure that came from reading the source stream, as
// opposed to the destination side of the same transfer.
type sourceError struct{ err error }

func (e *sourceError) Error() string { return "source: " + e.err.Error() }
func (e *sourceError) Unwrap() error { return e.err }
