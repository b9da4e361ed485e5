package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/ports"

	"github.com/jmoiron/sqlx"
)

// runRepository implements the RunRepository interface
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `id, series_id, frequency, with_stdev, input_hash, summary, elapsed_ms, created_at`

// Create inserts a run summary
func (r *runRepository) Create(ctx context.Context, run *calendar.Run) error {
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.SeriesID, run.Frequency, run.WithStdev, run.InputHash, summaryJSON, run.ElapsedMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID
func (r *runRepository) GetByID(ctx context.Context, id core.RunID) (*calendar.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("run", id.String())
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListBySeries returns the latest runs of a series first
func (r *runRepository) ListBySeries(ctx context.Context, seriesID core.SeriesID, limit int) ([]*calendar.Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+`
		FROM runs
		WHERE series_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, seriesID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*calendar.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*calendar.Run, error) {
	var run calendar.Run
	var summaryJSON []byte
	err := s.Scan(&run.ID, &run.SeriesID, &run.Frequency, &run.WithStdev, &run.InputHash,
		&summaryJSON, &run.ElapsedMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &run.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}
	return &run, nil
}
