package transfer

import (
	"context"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
)

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	Stream StreamConfig

	// RequeueOpenFailures requeues a task when opening the source stream
	// fails for a reason other than not found. When false such tasks are
	// dropped like not-found ones.
	RequeueOpenFailures bool
}

// UploadPipeline moves one file part from the source into the destination
// and records it in the catalog.
type UploadPipeline struct {
	catalog     PartCatalog
	allocator   CapacityAllocator
	source      SourceFetcher
	destination DestinationUploader
	compensator *CompensationManager
	cfg         UploadConfig
}

// NewUploadPipeline creates an UploadPipeline.
func NewUploadPipeline(catalog PartCatalog, allocator CapacityAllocator, source SourceFetcher, destination DestinationUploader, cfg UploadConfig) *UploadPipeline {
	return &UploadPipeline{
		catalog:     catalog,
		allocator:   allocator,
		source:      source,
		destination: destination,
		compensator: NewCompensationManager(catalog, destination),
		cfg:         cfg,
	}
}

// Process runs task to a terminal outcome. On return either the part is in
// both the destination and the catalog with its capacity charged, or no
// reservation and no orphan is left behind, or the outcome is Requeue.
func (p *UploadPipeline) Process(ctx context.Context, task TransferTask) *Report {
	r := newReport(PipelineUpload, task.TaskID)
	telemetry.SetAttributes(ctx,
		telemetry.TaskID(task.TaskID),
		telemetry.Filename(task.FileName),
		telemetry.Offset(task.Offset),
		telemetry.Size(task.Size),
	)

	r.enter(ctx, StateCheckingLiveness)
	exists, err := p.catalog.FileExists(ctx, task.TaskID)
	if IsNotFound(err) {
		exists, err = false, nil
	}
	if err != nil {
		return r.finish(Requeue, stageError(StateCheckingLiveness, task.TaskID, err))
	}
	if !exists {
		logger.InfoCtx(ctx, "File no longer exists, dropping part",
			logger.KeyFilename, task.FileName, logger.KeyOffset, task.Offset)
		return r.finish(Drop, stageError(StateCheckingLiveness, task.TaskID, ErrNotFound))
	}

	r.enter(ctx, StateReserving)
	account, err := p.allocator.Reserve(ctx, task.Size)
	if err != nil {
		return r.finish(Requeue, stageError(StateReserving, task.TaskID, err))
	}
	r.AccountID = account.ID
	r.Reserved = task.Size
	ctx = withAccount(ctx, account.ID)
	telemetry.SetAttributes(ctx, telemetry.AccountID(account.ID))

	r.enter(ctx, StateFetching)
	body, err := p.source.Open(ctx, task.FileName, task.Offset, task.Size)
	if err != nil {
		p.release(ctx, r)
		outcome := Drop
		if !IsNotFound(err) && p.cfg.RequeueOpenFailures {
			outcome = Requeue
		}
		logger.WarnCtx(ctx, "Failed to open source stream",
			logger.KeyFilename, task.FileName, logger.KeyOutcome, outcome.String(), logger.KeyError, err)
		return r.finish(outcome, stageError(StateFetching, task.TaskID, err))
	}
	defer func() { _ = body.Close() }()

	r.enter(ctx, StateUploading)
	result, sent, err := pump(ctx, p.cfg.Stream, body, task.Size, account.ID, p.destination)
	r.Bytes = sent
	if err != nil {
		p.release(ctx, r)
		outcome := Requeue
		if isSourceError(err) && IsNotFound(err) {
			outcome = Drop
		}
		logger.WarnCtx(ctx, "Part transfer failed",
			logger.KeyBytes, sent, logger.KeySize, task.Size, logger.KeyOutcome, outcome.String(), logger.KeyError, err)
		return r.finish(outcome, stageError(StateUploading, task.TaskID, err))
	}
	r.PartID = result.PartID

	r.enter(ctx, StateRecording)
	part := StoredPart{
		PartID:      result.PartID,
		OwnerID:     account.ID,
		LogicalName: result.CanonicalName,
		Offset:      task.Offset,
		Size:        task.Size,
	}
	if part.LogicalName == "" {
		part.LogicalName = task.FileName
	}

	ok, err := p.catalog.CreatePart(ctx, task.TaskID, part)
	switch {
	case err != nil:
		// the bytes landed but nothing records them; undo before retrying
		p.compensate(ctx, r, part)
		p.release(ctx, r)
		logger.ErrorCtx(ctx, "Failed to record part",
			logger.KeyPartID, part.PartID, logger.KeyError, err)
		return r.finish(Requeue, stageError(StateRecording, task.TaskID, err))
	case !ok:
		p.compensate(ctx, r, part)
		p.release(ctx, r)
		r.Err = stageError(StateRecording, task.TaskID, ErrCatalogRejected)
		logger.WarnCtx(ctx, "Catalog rejected part record, orphan compensated",
			logger.KeyPartID, part.PartID, "compensated", r.Compensated)
	default:
		r.Recorded = true
	}

	if task.IsLastPart {
		p.cleanup(ctx, r, task.TaskID)
	}

	logger.InfoCtx(ctx, "Part transferred",
		logger.KeyPartID, part.PartID, logger.KeyOffset, task.Offset, logger.KeySize, task.Size,
		logger.KeyLastPart, task.IsLastPart, "recorded", r.Recorded)
	return r.finish(Ack, r.Err)
}

// release returns the reservation. Failures are logged and kept on the
// report, never retried.
func (p *UploadPipeline) release(ctx context.Context, r *Report) {
	if err := p.allocator.Release(ctx, r.AccountID, r.Reserved); err != nil {
		r.ReleaseErr = err
		logger.ErrorCtx(ctx, "Failed to release reserved capacity",
			logger.KeySize, r.Reserved, logger.KeyError, err)
		return
	}
	r.Released = true
}

func (p *UploadPipeline) compensate(ctx context.Context, r *Report, part StoredPart) {
	r.enter(ctx, StateCompensating)
	if err := p.compensator.DeletePart(ctx, part); err != nil {
		r.CompensationErr = err
		logger.ErrorCtx(ctx, "Failed to delete orphaned part",
			logger.KeyPartID, part.PartID, logger.KeyError, err)
		return
	}
	r.Compensated = true
}

// cleanup asks the source to drop its upload session. One attempt, error
// discarded.
func (p *UploadPipeline) cleanup(ctx context.Context, r *Report, taskID string) {
	if err := p.source.Cleanup(ctx, taskID); err != nil {
		r.CleanupErr = err
		logger.WarnCtx(ctx, "Source cleanup failed", logger.KeyError, err)
	}
}

func withAccount(ctx context.Context, accountID string) context.Context {
	if lc := logger.FromContext(ctx); lc != nil {
		return logger.WithContext(ctx, lc.WithAccount(accountID))
	}
	return ctx
}
