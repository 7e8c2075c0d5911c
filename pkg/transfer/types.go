// Package transfer implements the two work pipelines of ferry: moving a file
// part from the source file-store into destination storage, and deleting a
// previously stored part. Collaborators are injected as interfaces so the
// pipelines hold no transport or broker state of their own.
package transfer

import (
	"context"
	"io"
	"time"
)

// TransferTask identifies one contiguous byte range of a logical file owned
// by TaskID. Offset and Size are trusted as received.
type TransferTask struct {
	TaskID     string
	FileName   string
	Offset     uint64
	Size       uint64
	IsLastPart bool
}

// Account is a destination account chosen by the allocator.
type Account struct {
	ID           string
	FreeCapacity uint64
}

// StoredPart is the catalog record of a part held by the destination.
type StoredPart struct {
	PartID      string
	OwnerID     string
	LogicalName string
	Offset      uint64
	Size        uint64
}

// DeletionTask asks for a stored part to be removed. It mirrors StoredPart.
type DeletionTask StoredPart

// Part returns the stored part the task refers to.
func (t DeletionTask) Part() StoredPart {
	return StoredPart(t)
}

// UploadResult is what the destination returns for a completed write.
type UploadResult struct {
	PartID        string
	CanonicalName string
}

// CapacityAllocator reserves and releases destination capacity.
type CapacityAllocator interface {
	// Reserve returns an account able to hold size bytes. The reservation is
	// implicit in the returned account.
	Reserve(ctx context.Context, size uint64) (Account, error)

	// Release gives size bytes back to the account.
	Release(ctx context.Context, accountID string, size uint64) error
}

// PartCatalog is the authoritative record of files and their parts.
type PartCatalog interface {
	// FileExists reports whether the logical file owning taskID still exists.
	FileExists(ctx context.Context, taskID string) (bool, error)

	// CreatePart records part under taskID. ok=false is a logical failure
	// distinct from a transport error.
	CreatePart(ctx context.Context, taskID string, part StoredPart) (ok bool, err error)

	// DeletePart removes the part from the destination and the catalog.
	DeletePart(ctx context.Context, part StoredPart) (ok bool, err error)
}

// SourceFetcher reads file parts from the source file-store.
type SourceFetcher interface {
	// Open returns a stream over [offset, offset+size) of fileName.
	Open(ctx context.Context, fileName string, offset, size uint64) (io.ReadCloser, error)

	// Cleanup asks the source to drop the upload session of taskID.
	Cleanup(ctx context.Context, taskID string) error
}

// DestinationUploader writes an ordered chunk stream to destination storage.
//
// Upload must commit only after chunks is closed while ctx is still live.
// If ctx is cancelled the write must be abandoned, whether or not chunks has
// been closed.
type DestinationUploader interface {
	Upload(ctx context.Context, accountID string, size uint64, chunks <-chan []byte) (UploadResult, error)
}

// DestinationDeleter is implemented by destinations whose objects the
// catalog cannot remove on its own. Delete must succeed when the object is
// already gone.
type DestinationDeleter interface {
	Delete(ctx context.Context, part StoredPart) error
}

// Outcome is the terminal broker decision for one delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Drop rejects the message without requeueing it.
	Drop
	// Requeue rejects the message and returns it to the queue.
	Requeue
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Drop:
		return "drop"
	case Requeue:
		return "requeue"
	default:
		return "unknown"
	}
}

// State is a step of the per-task state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateCheckingLiveness State = "CHECKING_LIVENESS"
	StateReserving        State = "RESERVING"
	StateFetching         State = "FETCHING"
	StateUploading        State = "UPLOADING"
	StateRecording        State = "RECORDING"
	StateCompensating     State = "COMPENSATING"
	StateDeleting         State = "DELETING"
	StateDone             State = "DONE"
	StateDropped          State = "DROPPED"
	StateRequeued         State = "REQUEUED"
)

// Report describes how one delivery was processed. Pipelines return it so
// the consumer can settle the message and record what happened.
type Report struct {
	Pipeline string
	TaskID   string
	Outcome  Outcome

	// State is the terminal state. Stage is the last working state reached.
	State State
	Stage State

	AccountID   string
	Reserved    uint64
	Released    bool
	PartID      string
	Recorded    bool // catalog holds the part; the reservation is consumed
	Compensated bool
	Bytes       uint64

	// Err is the error that decided a non-ack outcome, or a logged failure
	// on an acked path.
	Err error

	// Failures of best-effort steps. They never change the outcome.
	ReleaseErr      error
	CompensationErr error
	CleanupErr      error

	StartedAt time.Time
	Duration  time.Duration
}

const (
	PipelineUpload = "upload"
	PipelineDelete = "delete"
)
