package migration

import (
	"context"
	"fmt"

	"gocal/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	steps   []step
}

type step struct {
	name string
	run  func(ctx context.Context, db *sqlx.DB) error
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	r := &MigrationRunner{version: "1.0.0"}
	r.steps = []step{
		{"series table", r.createSeriesTable},
		{"observations table", r.createObservationsTable},
		{"runs table", r.createRunsTable},
		{"indexes", r.createIndexes},
	}
	return r
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Steps lists the migration steps in execution order
func (r *MigrationRunner) Steps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.name
	}
	return names
}

// Run executes all database migrations in the correct order. Every step is
// idempotent.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, s := range r.steps {
		if err := s.run(ctx, db); err != nil {
			return errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), fmt.Sprintf("failed to migrate %s", s.name))
		}
	}
	return nil
}

func (r *MigrationRunner) createSeriesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS series (
			id TEXT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			weights DOUBLE PRECISION[],
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createObservationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS observations (
			series_id TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			period_start DATE NOT NULL,
			period_end DATE NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (series_id, period_start),
			CHECK (period_end > period_start)
		)
	`)
	return err
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL REFERENCES series(id) ON DELETE CASCADE,
			frequency VARCHAR(20) NOT NULL DEFAULT '',
			with_stdev BOOLEAN NOT NULL DEFAULT false,
			input_hash VARCHAR(64) NOT NULL,
			summary JSONB NOT NULL,
			elapsed_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_runs_series_created ON runs(series_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_input_hash ON runs(input_hash);
		CREATE INDEX IF NOT EXISTS idx_series_created ON series(created_at)
	`)
	return err
}
