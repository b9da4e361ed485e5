package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// seriesRepository implements the SeriesRepository interface
type seriesRepository struct {
	db *sqlx.DB
}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository(db *sqlx.DB) ports.SeriesRepository {
	return &seriesRepository{db: db}
}

type seriesRow struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Weights   pq.Float64Array `db:"weights"`
	CreatedAt time.Time       `db:"created_at"`
}

type observationRow struct {
	SeriesID string    `db:"series_id"`
	Start    time.Time `db:"period_start"`
	End      time.Time `db:"period_end"`
	Value    float64   `db:"value"`
}

func (r seriesRow) toDomain(obs []observationRow) *calendar.Series {
	s := &calendar.Series{
		ID:        core.SeriesID(r.ID),
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Weights) > 0 {
		s.Weights = []float64(r.Weights)
	}
	s.Observations = make([]calendar.PeriodObservation, len(obs))
	for i, o := range obs {
		s.Observations[i] = calendar.PeriodObservation{
			Start: calendar.Day(o.Start),
			End:   calendar.Day(o.End),
			Value: o.Value,
		}
	}
	return s
}

// Create inserts a series and its observations in one transaction
func (r *seriesRepository) Create(ctx context.Context, series *calendar.Series) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series (id, name, weights, created_at)
		VALUES ($1, $2, $3, $4)
	`, series.ID, series.Name, pq.Float64Array(series.Weights), series.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create series: %w", err)
	}

	if len(series.Observations) > 0 {
		rows := make([]observationRow, len(series.Observations))
		for i, o := range series.Observations {
			rows[i] = observationRow{SeriesID: series.ID.String(), Start: o.Start, End: o.End, Value: o.Value}
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO observations (series_id, period_start, period_end, value)
			VALUES (:series_id, :period_start, :period_end, :value)
		`, rows)
		if err != nil {
			return fmt.Errorf("failed to store observations: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series: %w", err)
	}
	return nil
}

// GetByID retrieves a series with its observations ordered by start
func (r *seriesRepository) GetByID(ctx context.Context, id core.SeriesID) (*calendar.Series, error) {
	var row seriesRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, name, weights, created_at
		FROM series
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NewNotFoundError("series", id.String())
		}
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	var obs []observationRow
	err = r.db.SelectContext(ctx, &obs, `
		SELECT series_id, period_start, period_end, value
		FROM observations
		WHERE series_id = $1
		ORDER BY period_start
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get observations: %w", err)
	}
	return row.toDomain(obs), nil
}

// List returns series without their observations, oldest first
func (r *seriesRepository) List(ctx context.Context, limit, offset int) ([]*calendar.Series, error) {
	var rows []seriesRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, weights, created_at
		FROM series
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	out := make([]*calendar.Series, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain(nil)
	}
	return out, nil
}

// Delete removes a series; observations and runs cascade
func (r *seriesRepository) Delete(ctx context.Context, id core.SeriesID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM series WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete series: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete series: %w", err)
	}
	if n == 0 {
		return core.NewNotFoundError("series", id.String())
	}
	return nil
}
