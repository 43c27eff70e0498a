// Package storage provides the run journal for the mapper package.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// ErrRunNotFound is returned when a run ID is not in the journal.
var ErrRunNotFound = errors.New("mapper: run not found")

// RunStatus is the lifecycle state of a journaled run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// DefaultListLimit is used when ListRuns is called with a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit caps ListRuns.
const MaxListLimit = 1000

// RunRecord is one bulk run.
type RunRecord struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Endpoint      string     `gorm:"size:32;index" json:"endpoint"`
	SinkPath      string     `gorm:"size:1024" json:"sink_path"`
	Planned       int        `json:"planned"`
	Skipped       int        `json:"skipped"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	NotDispatched int        `json:"not_dispatched"`
	Status        RunStatus  `gorm:"size:16;index" json:"status"`
	Error         string     `gorm:"size:1024" json:"error,omitempty"`
	StartedAt     time.Time  `gorm:"index" json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// TableName keeps the table name stable across GORM naming strategies.
func (RunRecord) TableName() string { return "mapper_runs" }

// Elapsed returns the run duration, or zero while it is running.
func (r *RunRecord) Elapsed() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// GormJournal implements the run journal using GORM.
type GormJournal struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormJournal creates a GORM-backed journal.
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db, now: time.Now}
}

// DB returns the underlying database handle.
func (j *GormJournal) DB() *gorm.DB {
	return j.db
}

// IsSQLite reports whether the journal runs on SQLite.
func (j *GormJournal) IsSQLite() bool {
	return j.db.Dialector.Name() == "sqlite"
}

// Migrate creates the journal table.
func (j *GormJournal) Migrate(ctx context.Context) error {
	return j.db.WithContext(ctx).AutoMigrate(&RunRecord{})
}

// StartRun inserts a running record. An empty ID is filled with a new UUID.
func (j *GormJournal) StartRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = j.now()
	}
	run.Status = RunRunning
	run.FinishedAt = nil
	return j.db.WithContext(ctx).Create(run).Error
}

// FinishRun stores the final counters of a run. A non-nil runErr marks the
// run aborted; its message is sanitized before storage.
func (j *GormJournal) FinishRun(ctx context.Context, id string, summary core.Summary, runErr error) error {
	now := j.now()
	updates := map[string]any{
		"planned":        summary.Planned,
		"skipped":        summary.Skipped,
		"succeeded":      summary.Succeeded,
		"failed":         summary.Failed,
		"not_dispatched": summary.NotDispatched,
		"status":         RunCompleted,
		"error":          "",
		"finished_at":    now,
	}
	if runErr != nil {
		updates["status"] = RunAborted
		updates["error"] = security.SanitizeErrorMessage(runErr.Error())
	}

	result := j.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (j *GormJournal) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var run RunRecord
	err := j.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs first.
func (j *GormJournal) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var runs []*RunRecord
	err := j.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// LatestForSink returns the most recent run that wrote to path.
func (j *GormJournal) LatestForSink(ctx context.Context, path string) (*RunRecord, error) {
	var run RunRecord
	err := j.db.WithContext(ctx).
		Where("sink_path = ?", path).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
