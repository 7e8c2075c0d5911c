// Package queue consumes work queues from an AMQP broker. Each Consumer owns
// one channel, receives one delivery at a time and settles it with the
// outcome its Handler reports.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/internal/telemetry"
	"github.com/marmos91/ferry/pkg/transfer"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery stream, usually because the channel or connection died.
var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// Channel is the subset of *amqp.Channel a Consumer uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Recorder persists the report of every settled delivery.
type Recorder interface {
	Record(ctx context.Context, r *transfer.Report) error
}

// Metrics observes deliveries. It extends transfer.Metrics with an
// in-flight gauge.
type Metrics interface {
	transfer.Metrics
	DeliveryStarted(queue string)
	DeliveryFinished(queue string)
}

// Config configures one consumer.
type Config struct {
	// Queue is the queue to consume.
	Queue string

	// Prefetch is the broker-side limit of unacknowledged deliveries.
	// Default: 1
	Prefetch int

	// Durable declares the queue as durable.
	Durable bool
}

// Stats counts settled deliveries.
type Stats struct {
	Received     uint64
	Acked        uint64
	Dropped      uint64
	Requeued     uint64
	SettleErrors uint64
	LastError    error
	LastErrorAt  time.Time
}

// Consumer processes deliveries of one queue sequentially.
type Consumer struct {
	ch       Channel
	cfg      Config
	handler  Handler
	metrics  Metrics
	recorder Recorder
	tag      string

	mu      sync.Mutex
	running bool
	stats   Stats
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithRecorder sets the report recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Consumer) { c.recorder = r }
}

// NewConsumer creates a Consumer of cfg.Queue on ch. The consumer does not
// own ch; the caller closes it.
func NewConsumer(ch Channel, cfg Config, handler Handler, opts ...Option) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	c := &Consumer{
		ch:      ch,
		cfg:     cfg,
		handler: handler,
		tag:     "ferry-" + cfg.Queue + "-" + uuid.NewString()[:8],
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the consumed queue name.
func (c *Consumer) Queue() string { return c.cfg.Queue }

// Tag returns the consumer tag registered with the broker.
func (c *Consumer) Tag() string { return c.tag }

// Running reports whether the consumer is receiving deliveries.
func (c *Consumer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns a snapshot of the delivery counters.
func (c *Consumer) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run declares the queue, registers the consumer and handles deliveries
// until ctx is done or the broker closes the stream. A delivery that is
// being handled when ctx ends still runs to completion and is settled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos on %s: %w", c.cfg.Queue, err)
	}
	if _, err := c.ch.QueueDeclare(c.cfg.Queue, c.cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}
	deliveries, err := c.ch.Consume(c.cfg.Queue, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue %s: %w", c.cfg.Queue, err)
	}

	c.setRunning(true)
	defer c.setRunning(false)

	logger.Info("Consumer started",
		logger.KeyQueue, c.cfg.Queue,
		logger.KeyConsumerTag, c.tag,
		"prefetch", c.cfg.Prefetch)

	for {
		select {
		case <-ctx.Done():
			if err := c.ch.Cancel(c.tag, false); err != nil {
				logger.Warn("Consumer cancel failed", logger.KeyQueue, c.cfg.Queue, logger.KeyError, err)
			}
			logger.Info("Consumer stopped", logger.KeyQueue, c.cfg.Queue, logger.KeyConsumerTag, c.tag)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%s: %w", c.cfg.Queue, ErrDeliveriesClosed)
			}
			c.handle(context.WithoutCancel(ctx), d)
		}
	}
}

// handle runs one delivery through the handler and settles it.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	ctx = telemetry.Extract(ctx, headerCarrier(d.Headers))
	ctx, span := telemetry.StartDeliverySpan(ctx, c.cfg.Queue, d.DeliveryTag, d.Redelivered)
	defer span.End()

	lc := logger.NewLogContext(c.cfg.Queue, d.DeliveryTag).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	if c.metrics != nil {
		c.metrics.DeliveryStarted(c.cfg.Queue)
		defer c.metrics.DeliveryFinished(c.cfg.Queue)
	}

	if d.Redelivered {
		logger.DebugCtx(ctx, "Handling redelivered message", logger.KeyRedelivered, true)
	}

	report := c.handler.Handle(ctx, d.Body)
	settleErr := settle(d, report.Outcome)

	telemetry.SetAttributes(ctx, telemetry.Outcome(report.Outcome.String()))
	if report.Err != nil {
		telemetry.RecordError(ctx, report.Err)
	}

	c.count(report, settleErr)
	transfer.ObserveReport(c.metrics, report)

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, report); err != nil {
			logger.WarnCtx(ctx, "Failed to record transfer report", logger.KeyError, err)
		}
	}

	if settleErr != nil {
		logger.ErrorCtx(ctx, "Failed to settle delivery",
			logger.KeyOutcome, report.Outcome.String(),
			logger.KeyError, settleErr)
		return
	}

	args := []any{
		logger.KeyPipeline, report.Pipeline,
		logger.KeyOutcome, report.Outcome.String(),
		logger.KeyStage, string(report.Stage),
		logger.KeyDurationMs, float64(report.Duration.Microseconds()) / 1000.0,
	}
	if report.Err != nil {
		args = append(args, logger.KeyError, report.Err)
	}
	if report.Outcome == transfer.Ack && report.Err == nil {
		logger.InfoCtx(ctx, "Delivery settled", args...)
	} else {
		logger.WarnCtx(ctx, "Delivery settled", args...)
	}
}

// settle maps an outcome onto the broker: ack, reject without requeue, or
// reject with requeue.
func settle(d amqp.Delivery, o transfer.Outcome) error {
	switch o {
	case transfer.Ack:
		return d.Ack(false)
	case transfer.Drop:
		return d.Reject(false)
	default:
		return d.Reject(true)
	}
}

func (c *Consumer) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *Consumer) count(r *transfer.Report, settleErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Received++
	switch r.Outcome {
	case transfer.Ack:
		c.stats.Acked++
	case transfer.Drop:
		c.stats.Dropped++
	case transfer.Requeue:
		c.stats.Requeued++
	}

	err := r.Err
	if settleErr != nil {
		c.stats.SettleErrors++
		err = settleErr
	}
	if err != nil {
		c.stats.LastError = err
		c.stats.LastErrorAt = time.Now()
	}
}
