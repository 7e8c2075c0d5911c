package queue

import (
	"context"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/pkg/transfer"
	"github.com/marmos91/ferry/pkg/wire"
)

// Handler turns one message body into a settled report. Handlers never
// return nil.
type Handler interface {
	Handle(ctx context.Context, body []byte) *transfer.Report
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, body []byte) *transfer.Report

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, body []byte) *transfer.Report {
	return f(ctx, body)
}

// UploadProcessor runs a decoded upload task.
type UploadProcessor interface {
	Process(ctx context.Context, task transfer.TransferTask) *transfer.Report
}

// DeleteProcessor runs a decoded deletion task.
type DeleteProcessor interface {
	Process(ctx context.Context, task transfer.DeletionTask) *transfer.Report
}

// UploadHandler decodes FilePartUpload messages for p. Undecodable bodies
// are dropped.
func UploadHandler(p UploadProcessor) Handler {
	return HandlerFunc(func(ctx context.Context, body []byte) *transfer.Report {
		task, err := wire.DecodeTransferTask(body)
		if err != nil {
			logger.WarnCtx(ctx, "Dropping malformed upload message", logger.KeyError, err)
			return transfer.DroppedReport(transfer.PipelineUpload, err)
		}
		ctx = withTask(ctx, task.TaskID)
		logger.DebugCtx(ctx, "Upload task received",
			logger.KeyFilename, task.FileName,
			logger.KeyOffset, task.Offset,
			logger.KeySize, task.Size,
			logger.KeyLastPart, task.IsLastPart)
		return p.Process(ctx, task)
	})
}

// DeleteHandler decodes FilePartDelete messages for p. Undecodable bodies
// are dropped.
func DeleteHandler(p DeleteProcessor) Handler {
	return HandlerFunc(func(ctx context.Context, body []byte) *transfer.Report {
		task, err := wire.DecodeDeletionTask(body)
		if err != nil {
			logger.WarnCtx(ctx, "Dropping malformed delete message", logger.KeyError, err)
			return transfer.DroppedReport(transfer.PipelineDelete, err)
		}
		return p.Process(withTask(ctx, task.PartID), task)
	})
}

func withTask(ctx context.Context, id string) context.Context {
	if lc := logger.FromContext(ctx); lc != nil {
		return logger.WithContext(ctx, lc.WithTask(id))
	}
	return ctx
}
