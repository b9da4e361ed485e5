package testkit

import (
	"context"
	"sort"
	"sync"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/ports"
)

// TestKit bundles in-memory adapters so the service can run without a database
type TestKit struct {
	series *InMemorySeriesRepository
	runs   *InMemoryRunRepository
}

// NewTestKit creates a kit with empty stores
func NewTestKit() *TestKit {
	return &TestKit{
		series: NewInMemorySeriesRepository(),
		runs:   NewInMemoryRunRepository(),
	}
}

// SeriesRepository returns the shared series store
func (t *TestKit) SeriesRepository() ports.SeriesRepository {
	return t.series
}

// RunRepository returns the shared run store
func (t *TestKit) RunRepository() ports.RunRepository {
	return t.runs
}

// InMemorySeriesRepository implements SeriesRepository with a map
type InMemorySeriesRepository struct {
	mu     sync.RWMutex
	series map[core.SeriesID]*calendar.Series
}

func NewInMemorySeriesRepository() *InMemorySeriesRepository {
	return &InMemorySeriesRepository{series: make(map[core.SeriesID]*calendar.Series)}
}

func (r *InMemorySeriesRepository) Create(ctx context.Context, series *calendar.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *series
	cp.Observations = append([]calendar.PeriodObservation(nil), series.Observations...)
	cp.Weights = append([]float64(nil), series.Weights...)
	r.series[series.ID] = &cp
	return nil
}

func (r *InMemorySeriesRepository) GetByID(ctx context.Context, id core.SeriesID) (*calendar.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[id]
	if !ok {
		return nil, core.NewNotFoundError("series", id.String())
	}
	cp := *s
	return &cp, nil
}

// List returns series oldest first
func (r *InMemorySeriesRepository) List(ctx context.Context, limit, offset int) ([]*calendar.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*calendar.Series, 0, len(r.series))
	for _, s := range r.series {
		cp := *s
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return page(all, limit, offset), nil
}

func (r *InMemorySeriesRepository) Delete(ctx context.Context, id core.SeriesID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.series[id]; !ok {
		return core.NewNotFoundError("series", id.String())
	}
	delete(r.series, id)
	return nil
}

// InMemoryRunRepository implements RunRepository with a map
type InMemoryRunRepository struct {
	mu       sync.RWMutex
	runs     map[core.RunID]*calendar.Run
	bySeries map[core.SeriesID][]core.RunID
}

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs:     make(map[core.RunID]*calendar.Run),
		bySeries: make(map[core.SeriesID][]core.RunID),
	}
}

func (r *InMemoryRunRepository) Create(ctx context.Context, run *calendar.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	r.bySeries[run.SeriesID] = append(r.bySeries[run.SeriesID], run.ID)
	return nil
}

func (r *InMemoryRunRepository) GetByID(ctx context.Context, id core.RunID) (*calendar.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	cp := *run
	return &cp, nil
}

// ListBySeries returns the latest runs first
func (r *InMemoryRunRepository) ListBySeries(ctx context.Context, seriesID core.SeriesID, limit int) ([]*calendar.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.bySeries[seriesID]
	out := make([]*calendar.Run, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		cp := *r.runs[ids[i]]
		out = append(out, &cp)
	}
	return page(out, limit, 0), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
