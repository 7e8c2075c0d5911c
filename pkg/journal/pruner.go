package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/marmos91/ferry/internal/logger"
)

// Purger deletes journal entries older than a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically purges entries older than the retention period.
type Pruner struct {
	purger    Purger
	retention time.Duration
	interval  time.Duration
	scheduler gocron.Scheduler
	now       func() time.Time
}

// NewPruner creates a Pruner. retention and interval must be positive.
func NewPruner(purger Purger, retention, interval time.Duration) (*Pruner, error) {
	if retention <= 0 || interval <= 0 {
		return nil, errors.New("journal pruner needs a positive retention and interval")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create pruning scheduler: %w", err)
	}

	return &Pruner{
		purger:    purger,
		retention: retention,
		interval:  interval,
		scheduler: s,
		now:       time.Now,
	}, nil
}

// Start schedules the prune job, running it once immediately.
func (p *Pruner) Start(ctx context.Context) error {
	_, err := p.scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func() { _, _ = p.PruneOnce(ctx) }),
		gocron.WithName("journal-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule journal pruning: %w", err)
	}
	p.scheduler.Start()

	logger.Info("Journal pruning scheduled",
		"retention", p.retention.String(),
		"interval", p.interval.String())
	return nil
}

// PruneOnce purges entries older than now minus the retention period.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.purger.Purge(ctx, cutoff)
	if err != nil {
		logger.Warn("Journal pruning failed", logger.KeyError, err)
		return 0, err
	}
	if n > 0 {
		logger.Info("Journal pruned", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Stop shuts the scheduler down, waiting for a running prune to finish.
func (p *Pruner) Stop() error {
	return p.scheduler.Shutdown()
}
