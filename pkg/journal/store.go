// Package journal keeps a local audit trail of every processed delivery.
// Each entry records what a transfer attempt reserved, released, stored and
// compensated, so capacity drift caused by failed best-effort steps can be
// found and reconciled later.
package journal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/ferry/pkg/transfer"
)

// Entry is one journaled delivery.
type Entry struct {
	ID          string `gorm:"primaryKey;size:36"`
	Pipeline    string `gorm:"size:16;index"`
	TaskID      string `gorm:"size:255;index"`
	Outcome     string `gorm:"size:16;index"`
	State       string `gorm:"size:32"`
	Stage       string `gorm:"size:32"`
	AccountID   string `gorm:"size:255;index"`
	PartID      string `gorm:"size:255"`
	Reserved    uint64
	Released    bool
	Recorded    bool
	Compensated bool
	Bytes       uint64

	Error             string `gorm:"type:text"`
	ReleaseError      string `gorm:"type:text"`
	CompensationError string `gorm:"type:text"`
	CleanupError      string `gorm:"type:text"`

	StartedAt  time.Time
	DurationMs int64
	CreatedAt  time.Time `gorm:"index"`
}

// TableName returns the journal table name.
func (Entry) TableName() string {
	return "transfer_journal"
}

// Leaked reports whether the attempt reserved capacity that was neither
// consumed by a catalog record nor given back.
func (e *Entry) Leaked() bool {
	return e.Reserved > 0 && !e.Recorded && !e.Released
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Pipeline string
	Outcome  string
	TaskID   string
	Since    time.Time

	// LeaksOnly keeps only entries whose reservation leaked.
	LeaksOnly bool

	// Limit caps the result size. Default: 100
	Limit int
}

// Store persists journal entries with GORM on SQLite or PostgreSQL.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the journal database and migrates its schema.
func Open(cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal configuration: %w", err)
	}

	var dialector gorm.Dialector
	memory := false
	switch cfg.Type {
	case DatabaseTypeSQLite:
		dsn := cfg.SQLite.Path
		if dsn == ":memory:" {
			memory = true
		} else {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
		dialector = sqlite.Open(dsn)
	case DatabaseTypePostgres:
		dialector = postgres.Open(cfg.Postgres.DSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch {
	case memory:
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	case cfg.Type == DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Record stores r. It implements queue.Recorder.
func (s *Store) Record(ctx context.Context, r *transfer.Report) error {
	e := Entry{
		ID:                uuid.NewString(),
		Pipeline:          r.Pipeline,
		TaskID:            r.TaskID,
		Outcome:           r.Outcome.String(),
		State:             string(r.State),
		Stage:             string(r.Stage),
		AccountID:         r.AccountID,
		PartID:            r.PartID,
		Reserved:          r.Reserved,
		Released:          r.Released,
		Recorded:          r.Recorded,
		Compensated:       r.Compensated,
		Bytes:             r.Bytes,
		Error:             errString(r.Err),
		ReleaseError:      errString(r.ReleaseErr),
		CompensationError: errString(r.CompensationErr),
		CleanupError:      errString(r.CleanupErr),
		StartedAt:         r.StartedAt,
		DurationMs:        r.Duration.Milliseconds(),
		CreatedAt:         s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("failed to journal %s %s: %w", r.Pipeline, r.TaskID, err)
	}
	return nil
}

// List returns entries matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}

	q := s.db.WithContext(ctx).Model(&Entry{})
	if f.Pipeline != "" {
		q = q.Where("pipeline = ?", f.Pipeline)
	}
	if f.Outcome != "" {
		q = q.Where("outcome = ?", f.Outcome)
	}
	if f.TaskID != "" {
		q = q.Where("task_id = ?", f.TaskID)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.LeaksOnly {
		q = q.Where("reserved > 0 AND recorded = ? AND released = ?", false, false)
	}

	var entries []Entry
	if err := q.Order("created_at DESC").Limit(f.Limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	return entries, nil
}

// Purge deletes entries created before cutoff and returns how many were
// removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge journal: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
