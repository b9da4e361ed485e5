package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/internal"
	"gocal/internal/errors"
	"gocal/internal/report"
	"gocal/ports"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ServiceConfig bounds the work of the calendarization service
type ServiceConfig struct {
	MaxConcurrency int
	MaxGridDays    int
	DefaultWeights []float64
}

// CalendarizationService runs calendarizations for API, UI and CLI callers and
// persists their summaries when repositories are configured.
type CalendarizationService struct {
	smoother   ports.StateSmoother
	seriesRepo ports.SeriesRepository
	runRepo    ports.RunRepository
	config     ServiceConfig
	logger     *internal.Logger
}

// CalendarizeRequest describes one calendarization
type CalendarizeRequest struct {
	SeriesID     core.SeriesID                `json:"series_id,omitempty"`
	Observations []calendar.PeriodObservation `json:"observations"`
	Span         *calendar.Span               `json:"span,omitempty"`
	Weights      []float64                    `json:"weights,omitempty"`
	// Frequency selects output aggregation; empty returns the daily series only
	Frequency calendar.Frequency `json:"frequency,omitempty"`
	WithStdev bool               `json:"with_stdev"`
}

// CalendarizeResult is the outcome of one calendarization
type CalendarizeResult struct {
	Run          calendar.Run                 `json:"run"`
	Observations []calendar.PeriodObservation `json:"observations"`
	Daily        calendar.DailySeries         `json:"daily"`
	Aggregate    *calendar.AggregateSeries    `json:"aggregate,omitempty"`
}

// NewCalendarizationService wires the service. Repositories may be nil, in
// which case nothing is persisted.
func NewCalendarizationService(smoother ports.StateSmoother, seriesRepo ports.SeriesRepository, runRepo ports.RunRepository, config ServiceConfig, logger *internal.Logger) *CalendarizationService {
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CalendarizationService{
		smoother:   smoother,
		seriesRepo: seriesRepo,
		runRepo:    runRepo,
		config:     config,
		logger:     logger.WithComponent("CalendarizationService"),
	}
}

// PersistenceEnabled reports whether series and runs are stored
func (s *CalendarizationService) PersistenceEnabled() bool {
	return s.seriesRepo != nil && s.runRepo != nil
}

// Calendarize runs one calendarization. Malformed input fails with a
// validation error; missing data yields a result whose series are unavailable.
func (s *CalendarizationService) Calendarize(ctx context.Context, req CalendarizeRequest) (*CalendarizeResult, error) {
	startTime := time.Now()

	weights := req.Weights
	if len(weights) == 0 {
		weights = s.config.DefaultWeights
	}
	if req.Frequency != "" {
		freq, err := calendar.ParseFrequency(string(req.Frequency))
		if err != nil {
			return nil, errors.Wrap(err, "invalid calendarization request")
		}
		req.Frequency = freq
	}

	cal, err := NewCalendarization(req.Observations, CalendarizationOptions{
		Span:        req.Span,
		Weights:     weights,
		MaxGridDays: s.config.MaxGridDays,
	}, s.smoother, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "invalid calendarization request")
	}

	result := &CalendarizeResult{Observations: cal.Observations()}
	if req.Frequency != "" {
		agg, err := cal.Aggregate(ctx, req.Frequency, req.WithStdev)
		if err != nil {
			return nil, errors.Wrapf(err, "%s calendarization failed", req.Frequency)
		}
		result.Aggregate = &agg
		result.Daily = agg.Daily
	} else {
		daily, err := cal.Daily(ctx, req.WithStdev)
		if err != nil {
			return nil, errors.Wrap(err, "daily calendarization failed")
		}
		result.Daily = daily
	}

	summary, err := report.Summarize(result.Observations, result.Daily, result.Aggregate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to summarize calendarization")
	}

	result.Run = calendar.Run{
		ID:        core.NewRunID(),
		SeriesID:  req.SeriesID,
		Frequency: req.Frequency,
		WithStdev: req.WithStdev,
		InputHash: fingerprint(result.Observations, req.Span, weights),
		Summary:   summary,
		ElapsedMS: time.Since(startTime).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}

	if !cal.Available() {
		s.logger.Info("no observations to calendarize (run %s)", result.Run.ID)
		return result, nil
	}

	if s.runRepo != nil && req.SeriesID != "" {
		if err := s.runRepo.Create(ctx, &result.Run); err != nil {
			return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to store run")
		}
	}

	s.logger.Info("run %s: %d days, %d observations, max residual %.3g (%d ms)",
		result.Run.ID, summary.Days, summary.Observations, summary.MaxResidual, result.Run.ElapsedMS)
	return result, nil
}

// CalendarizeBatch runs independent calendarizations concurrently, each on its
// own Calendarization instance. The first failure cancels the rest.
func (s *CalendarizationService) CalendarizeBatch(ctx context.Context, reqs []CalendarizeRequest) ([]*CalendarizeResult, error) {
	results := make([]*CalendarizeResult, len(reqs))
	sem := semaphore.NewWeighted(int64(s.config.MaxConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i := range reqs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			defer sem.Release(1)
			res, err := s.Calendarize(gctx, reqs[i])
			if err != nil {
				return errors.Wrapf(err, "batch item %d", i)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// CreateSeries validates and stores a new observation series
func (s *CalendarizationService) CreateSeries(ctx context.Context, name string, obs []calendar.PeriodObservation, weights []float64) (*calendar.Series, error) {
	if s.seriesRepo == nil {
		return nil, errors.ConfigInvalid("persistence is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.InvalidInput("series name is required")
	}
	normalized, err := calendar.NormalizeObservations(obs)
	if err != nil {
		return nil, errors.Wrap(err, "invalid observations")
	}
	if err := calendar.ValidatePattern(weights); err != nil {
		return nil, errors.Wrap(err, "invalid weights")
	}

	series := &calendar.Series{
		ID:           core.NewSeriesID(),
		Name:         name,
		Weights:      weights,
		Observations: normalized,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.seriesRepo.Create(ctx, series); err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to store series")
	}
	return series, nil
}

// GetSeries loads a stored series
func (s *CalendarizationService) GetSeries(ctx context.Context, id core.SeriesID) (*calendar.Series, error) {
	if s.seriesRepo == nil {
		return nil, errors.ConfigInvalid("persistence is not configured")
	}
	series, err := s.seriesRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load series %s", id)
	}
	return series, nil
}

// ListSeries pages through stored series
func (s *CalendarizationService) ListSeries(ctx context.Context, limit, offset int) ([]*calendar.Series, error) {
	if s.seriesRepo == nil {
		return nil, errors.ConfigInvalid("persistence is not configured")
	}
	return s.seriesRepo.List(ctx, limit, offset)
}

// CalendarizeSeries calendarizes a stored series
func (s *CalendarizationService) CalendarizeSeries(ctx context.Context, id core.SeriesID, freq calendar.Frequency, withStdev bool, span *calendar.Span) (*CalendarizeResult, error) {
	series, err := s.GetSeries(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Calendarize(ctx, CalendarizeRequest{
		SeriesID:     series.ID,
		Observations: series.Observations,
		Span:         span,
		Weights:      series.Weights,
		Frequency:    freq,
		WithStdev:    withStdev,
	})
}

// GetRun loads a stored run summary
func (s *CalendarizationService) GetRun(ctx context.Context, id core.RunID) (*calendar.Run, error) {
	if s.runRepo == nil {
		return nil, errors.ConfigInvalid("persistence is not configured")
	}
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load run %s", id)
	}
	return run, nil
}

// ListRuns returns the latest runs of a series
func (s *CalendarizationService) ListRuns(ctx context.Context, id core.SeriesID, limit int) ([]*calendar.Run, error) {
	if s.runRepo == nil {
		return nil, errors.ConfigInvalid("persistence is not configured")
	}
	return s.runRepo.ListBySeries(ctx, id, limit)
}

// fingerprint hashes the normalized inputs that determine a run's numbers
func fingerprint(obs []calendar.PeriodObservation, span *calendar.Span, weights []float64) core.InputHash {
	payload, err := json.Marshal(struct {
		Observations []calendar.PeriodObservation `json:"o"`
		Span         *calendar.Span               `json:"s"`
		Weights      []float64                    `json:"w"`
	}{obs, span, weights})
	if err != nil {
		payload = []byte(fmt.Sprint(obs, span, weights))
	}
	return core.NewInputHash(payload)
}
