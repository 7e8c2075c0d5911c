package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for transfer spans.
const (
	AttrQueue       = "messaging.destination.name"
	AttrDeliveryTag = "messaging.rabbitmq.delivery_tag"
	AttrRedelivered = "messaging.rabbitmq.redelivered"

	AttrPipeline  = "ferry.pipeline"
	AttrTaskID    = "ferry.task_id"
	AttrPartID    = "ferry.part_id"
	AttrAccountID = "ferry.account_id"
	AttrFilename  = "ferry.filename"
	AttrOffset    = "ferry.offset"
	AttrSize      = "ferry.size"
	AttrLastPart  = "ferry.last_part"
	AttrOutcome   = "ferry.outcome"
	AttrStage     = "ferry.stage"
	AttrBytes     = "ferry.bytes"
)

// Span names
const (
	SpanDelivery     = "ferry.delivery"
	SpanSourceFetch  = "source.fetch"
	SpanSourceDelete = "source.cleanup"
	SpanUpload       = "destination.upload"
)

// StartDeliverySpan starts the consumer span that covers one broker delivery.
func StartDeliverySpan(ctx context.Context, queue string, deliveryTag uint64, redelivered bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDelivery,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String(AttrQueue, queue),
			attribute.Int64(AttrDeliveryTag, int64(deliveryTag)),
			attribute.Bool(AttrRedelivered, redelivered),
		),
	)
}

// StartClientSpan starts a client span for an outbound call.
func StartClientSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// Stage marks a pipeline state transition on the current span.
func Stage(ctx context.Context, stage string) {
	AddEvent(ctx, "stage", attribute.String(AttrStage, stage))
}

// TaskID returns an attribute for an upload task id
func TaskID(id string) attribute.KeyValue { return attribute.String(AttrTaskID, id) }

// PartID returns an attribute for a destination part id
func PartID(id string) attribute.KeyValue { return attribute.String(AttrPartID, id) }

// AccountID returns an attribute for a destination account id
func AccountID(id string) attribute.KeyValue { return attribute.String(AttrAccountID, id) }

// Filename returns an attribute for a logical file name
func Filename(name string) attribute.KeyValue { return attribute.String(AttrFilename, name) }

// Offset returns an attribute for a byte offset
func Offset(o uint64) attribute.KeyValue { return attribute.Int64(AttrOffset, int64(o)) }

// Size returns an attribute for a size in bytes
func Size(s uint64) attribute.KeyValue { return attribute.Int64(AttrSize, int64(s)) }

// Outcome returns an attribute for the broker settlement
func Outcome(o string) attribute.KeyValue { return attribute.String(AttrOutcome, o) }
