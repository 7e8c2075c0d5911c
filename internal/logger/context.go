package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds the per-delivery logging context. Consumers attach one to
// the context before handing a message to a pipeline.
type LogContext struct {
	TraceID     string    // OpenTelemetry trace ID
	SpanID      string    // OpenTelemetry span ID
	Queue       string    // Queue the delivery came from
	DeliveryTag uint64    // Broker delivery tag
	TaskID      string    // Upload task or part being deleted
	AccountID   string    // Destination account once reserved
	StartTime   time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for one delivery.
func NewLogContext(queue string, deliveryTag uint64) *LogContext {
	return &LogContext{
		Queue:       queue,
		DeliveryTag: deliveryTag,
		StartTime:   time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithTask returns a copy with the task id set
func (lc *LogContext) WithTask(taskID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TaskID = taskID
	}
	return clone
}

// WithAccount returns a copy with the account id set
func (lc *LogContext) WithAccount(accountID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.AccountID = accountID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
