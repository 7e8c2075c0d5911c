package transfer

import (
	"context"
	"time"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
)

func newReport(pipeline, taskID string) *Report {
	return &Report{
		Pipeline:  pipeline,
		TaskID:    taskID,
		State:     StateReceived,
		Stage:     StateReceived,
		StartedAt: time.Now(),
	}
}

func (r *Report) enter(ctx context.Context, s State) {
	r.State, r.Stage = s, s
	telemetry.Stage(ctx, string(s))
	logger.DebugCtx(ctx, "Transfer stage", logger.KeyPipeline, r.Pipeline, logger.KeyStage, string(s))
}

func (r *Report) finish(o Outcome, err error) *Report {
	r.Outcome = o
	r.Err = err
	switch o {
	case Ack:
		r.State = StateDone
	case Drop:
		r.State = StateDropped
	case Requeue:
		r.State = StateRequeued
	}
	r.Duration = time.Since(r.StartedAt)
	return r
}

// DroppedReport is the report for a delivery rejected before any pipeline
// stage ran, e.g. because its body could not be decoded.
func DroppedReport(pipeline string, err error) *Report {
	return newReport(pipeline, "").finish(Drop, err)
}
