// Package worker assembles the transfer worker from configuration and runs
// it: both queue consumers, the health and metrics server, and the journal
// pruner.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/ferry/internal/logger"
	"github.com/marmos91/ferry/pkg/api"
	"github.com/marmos91/ferry/pkg/api/handlers"
	"github.com/marmos91/ferry/pkg/config"
	"github.com/marmos91/ferry/pkg/destination/s3"
	"github.com/marmos91/ferry/pkg/journal"
	"github.com/marmos91/ferry/pkg/metrics"
	"github.com/marmos91/ferry/pkg/queue"
	"github.com/marmos91/ferry/pkg/rpc"
	"github.com/marmos91/ferry/pkg/source"
	"github.com/marmos91/ferry/pkg/transfer"
)

// Consumer is a queue consumer run by the worker.
type Consumer interface {
	Run(ctx context.Context) error
	Queue() string
	Running() bool
	Stats() queue.Stats
}

// Server is the operational HTTP server.
type Server interface {
	Start(ctx context.Context) error
}

// Worker runs the upload and delete consumers until shutdown or until the
// broker connection is lost.
type Worker struct {
	consumers       []Consumer
	server          Server
	pruner          *journal.Pruner
	brokerClosed    <-chan *amqp.Error
	shutdownTimeout time.Duration

	// closers release resources in reverse order of acquisition.
	closers []func() error

	serveOnce sync.Once
	closeOnce sync.Once
}

// New connects to every collaborator named in cfg and assembles the worker.
// Nothing is consumed until Serve is called. On error every resource opened
// so far is released.
func New(ctx context.Context, cfg *config.Config) (w *Worker, err error) {
	w = &Worker{shutdownTimeout: cfg.ShutdownTimeout}
	defer func() {
		if err != nil {
			w.close()
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	broker, err := queue.Dial(queue.BrokerConfig{
		URL:       cfg.Broker.URL,
		Heartbeat: cfg.Broker.Heartbeat,
	})
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, broker.Close)
	w.brokerClosed = broker.Closed()

	conn, err := rpc.Dial(rpc.Config{
		Address:   cfg.FileService.Address,
		Timeout:   cfg.FileService.Timeout,
		KeepAlive: cfg.FileService.KeepAlive,
	})
	if err != nil {
		return nil, err
	}
	w.closers = append(w.closers, conn.Close)

	accounts := rpc.NewAccountClient(conn, cfg.FileService.Timeout)
	files := rpc.NewFileClient(conn, cfg.FileService.Timeout)

	tokens, err := tokenSource(cfg.Source.Auth)
	if err != nil {
		return nil, err
	}
	src, err := source.New(source.Config{
		BaseURL: cfg.Source.BaseURL,
		Prefix:  cfg.Source.Prefix,
		Timeout: cfg.Source.Timeout,
	}, tokens)
	if err != nil {
		return nil, err
	}

	dst, err := destination(ctx, cfg.Destination, accounts)
	if err != nil {
		return nil, err
	}

	upload := transfer.NewUploadPipeline(files, accounts, src, dst, transfer.UploadConfig{
		Stream: transfer.StreamConfig{
			ChunkSize:    cfg.Stream.ChunkSize.Int(),
			BufferChunks: cfg.Stream.BufferChunks,
		},
		RequeueOpenFailures: cfg.Upload.RequeueOpenFailures,
	})
	deletion := transfer.NewDeletionPipeline(transfer.NewCompensationManager(files, dst))

	var opts []queue.Option
	if m := metrics.NewTransferMetrics(); m != nil {
		opts = append(opts, queue.WithMetrics(m))
	}
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, store.Close)
		opts = append(opts, queue.WithRecorder(store))

		if cfg.Journal.Retention > 0 {
			w.pruner, err = journal.NewPruner(store, cfg.Journal.Retention, cfg.Journal.PruneInterval)
			if err != nil {
				return nil, err
			}
		}
	}

	queues := []struct {
		name    string
		handler queue.Handler
	}{
		{cfg.Broker.UploadQueue, queue.UploadHandler(upload)},
		{cfg.Broker.DeleteQueue, queue.DeleteHandler(deletion)},
	}
	health := make([]handlers.Consumer, 0, len(queues))
	for _, q := range queues {
		ch, err := broker.Channel()
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, ch.Close)

		c := queue.NewConsumer(ch, queue.Config{
			Queue:    q.name,
			Prefetch: cfg.Broker.Prefetch,
			Durable:  cfg.Broker.DurableQueues(),
		}, q.handler, opts...)
		w.consumers = append(w.consumers, c)
		health = append(health, c)
	}

	w.server = api.NewServer(api.Config{Port: cfg.Metrics.Port}, health...)

	logger.Info("Worker assembled",
		"upload_queue", cfg.Broker.UploadQueue,
		"delete_queue", cfg.Broker.DeleteQueue,
		"destination", cfg.Destination.Driver,
		"journal", cfg.Journal.Enabled,
		"metrics", metrics.IsEnabled())
	return w, nil
}

// tokenSource picks the file-store credentials: a static token when set,
// minted tokens when a signing key is set, none otherwise.
func tokenSource(cfg config.SourceAuthConfig) (source.TokenSource, error) {
	switch {
	case cfg.Token != "":
		return source.StaticToken(cfg.Token), nil
	case cfg.SigningKey != "":
		return source.NewSigner(source.SignerConfig{
			SigningKey: cfg.SigningKey,
			Issuer:     cfg.Issuer,
			Subject:    cfg.Subject,
			TTL:        cfg.TTL,
		})
	default:
		logger.Warn("No file-store credentials configured, requests are sent without Authorization")
		return nil, nil
	}
}

// destination builds the configured DestinationUploader.
func destination(ctx context.Context, cfg config.DestinationConfig, accounts *rpc.AccountClient) (transfer.DestinationUploader, error) {
	switch cfg.Driver {
	case config.DriverGRPC, "":
		return accounts, nil
	case config.DriverS3:
		return s3.NewFromConfig(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			KeyPrefix:       cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown destination driver %q", cfg.Driver)
	}
}

// Serve runs the worker until ctx is done or a component fails. Serve can
// only be called once.
//
// On shutdown the consumers stop taking deliveries and the task in flight
// gets up to the shutdown timeout to settle. A task still running after
// that is abandoned unsettled and the broker redelivers it.
func (w *Worker) Serve(ctx context.Context) error {
	err := errors.New("worker already served")
	w.serveOnce.Do(func() {
		err = w.serve(ctx)
	})
	return err
}

func (w *Worker) serve(ctx context.Context) error {
	defer w.close()

	if w.pruner != nil {
		if err := w.pruner.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := w.pruner.Stop(); err != nil {
				logger.Warn("Journal pruner stop failed", logger.KeyError, err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range w.consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	if w.server != nil {
		g.Go(func() error {
			return w.server.Start(gctx)
		})
	}
	if w.brokerClosed != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case amqpErr, ok := <-w.brokerClosed:
				if !ok {
					return nil
				}
				return queue.Err(amqpErr)
			}
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	logger.Info("Worker is running")

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Worker stopped on error", logger.KeyError, err)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, waiting for in-flight tasks",
		"timeout", w.shutdownTimeout)

	timer := time.NewTimer(w.shutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		logger.Info("Worker stopped gracefully")
		return err
	case <-timer.C:
		logger.Warn("Shutdown timeout exceeded, abandoning in-flight tasks to redelivery",
			"timeout", w.shutdownTimeout)
		return nil
	}
}

// close releases resources in reverse order of acquisition.
func (w *Worker) close() {
	w.closeOnce.Do(func() {
		for i := len(w.closers) - 1; i >= 0; i-- {
			if err := w.closers[i](); err != nil && !errors.Is(err, amqp.ErrClosed) {
				logger.Warn("Close failed", logger.KeyError, err)
			}
		}
	})
}
