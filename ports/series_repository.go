package ports

import (
	"context"

	"gocal/domain/calendar"
	"gocal/domain/core"
)

// SeriesRepository stores observation series
type SeriesRepository interface {
	Create(ctx context.Context, series *calendar.Series) error
	GetByID(ctx context.Context, id core.SeriesID) (*calendar.Series, error)
	List(ctx context.Context, limit, offset int) ([]*calendar.Series, error)
	Delete(ctx context.Context, id core.SeriesID) error
}

// RunRepository stores summaries of computed calendarizations
type RunRepository interface {
	Create(ctx context.Context, run *calendar.Run) error
	GetByID(ctx context.Context, id core.RunID) (*calendar.Run, error)
	ListBySeries(ctx context.Context, seriesID core.SeriesID, limit int) ([]*calendar.Run, error)
}
