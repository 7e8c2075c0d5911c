package transfer

import (
	"context"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
)

// DeletionPipeline removes stored parts. Every failure is retried: an
// orphaned part is worse than a repeated delete.
type DeletionPipeline struct {
	compensator *CompensationManager
}

// NewDeletionPipeline creates a DeletionPipeline using the shared
// compensation primitive.
func NewDeletionPipeline(compensator *CompensationManager) *DeletionPipeline {
	return &DeletionPipeline{compensator: compensator}
}

// Process deletes the part named by task.
func (p *DeletionPipeline) Process(ctx context.Context, task DeletionTask) *Report {
	r := newReport(PipelineDelete, task.PartID)
	r.PartID = task.PartID
	r.AccountID = task.OwnerID
	telemetry.SetAttributes(ctx, telemetry.PartID(task.PartID), telemetry.AccountID(task.OwnerID))

	r.enter(ctx, StateDeleting)
	if err := p.compensator.DeletePart(ctx, task.Part()); err != nil {
		logger.WarnCtx(ctx, "Part deletion failed, requeueing",
			logger.KeyPartID, task.PartID, logger.KeyError, err)
		return r.finish(Requeue, stageError(StateDeleting, task.PartID, err))
	}

	logger.InfoCtx(ctx, "Part deleted",
		logger.KeyPartID, task.PartID, logger.KeyAccountID, task.OwnerID, logger.KeySize, task.Size)
	return r.finish(Ack, nil)
}
