package logger

import "log/slog"

// Standard field keys for structured logging. Use them consistently so log
// aggregation can query transfers across both pipelines.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Broker
	KeyQueue       = "queue"
	KeyDeliveryTag = "delivery_tag"
	KeyConsumerTag = "consumer_tag"
	KeyOutcome     = "outcome" // ack, drop, requeue
	KeyRedelivered = "redelivered"

	// Transfer
	KeyPipeline  = "pipeline" // upload, delete
	KeyStage     = "stage"
	KeyTaskID    = "task_id"
	KeyPartID    = "part_id"
	KeyAccountID = "account_id"
	KeyFilename  = "filename"
	KeyOffset    = "offset"
	KeySize      = "size"
	KeyLastPart  = "last_part"
	KeyBytes     = "bytes"

	// Backends
	KeyDriver = "driver"
	KeyBucket = "bucket"
	KeyKey    = "key"
	KeyURL    = "url"
	KeyMethod = "method"
	KeyStatus = "status"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TaskID returns a slog.Attr for an upload task id
func TaskID(id string) slog.Attr {
	return slog.String(KeyTaskID, id)
}

// PartID returns a slog.Attr for a destination part id
func PartID(id string) slog.Attr {
	return slog.String(KeyPartID, id)
}

// AccountID returns a slog.Attr for a destination account
func AccountID(id string) slog.Attr {
	return slog.String(KeyAccountID, id)
}

// Offset returns a slog.Attr for a byte offset
func Offset(o uint64) slog.Attr {
	return slog.Uint64(KeyOffset, o)
}

// Size returns a slog.Attr for a size in bytes
func Size(s uint64) slog.Attr {
	return slog.Uint64(KeySize, s)
}

// Outcome returns a slog.Attr for a broker settlement
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}

// Stage returns a slog.Attr for a pipeline stage
func Stage(s string) slog.Attr {
	return slog.String(KeyStage, s)
}

// Err returns a slog.Attr for an error. A nil error yields an empty attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
