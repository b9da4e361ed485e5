package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/domain/ssf"
	"gocal/internal"
	"gocal/ports"
)

// CalendarizationOptions are the optional inputs of one calendarization
type CalendarizationOptions struct {
	// Span extends the daily grid beyond the observed range
	Span *calendar.Span
	// Weights is a Monday-first day-of-week pattern; empty means uniform
	Weights []float64
	// MaxGridDays rejects longer grids when positive
	MaxGridDays int
}

// Calendarization reconstructs a daily series from period observations.
//
// Results are computed lazily and memoized per processing level: the fast
// daily path (no variances), the daily path with standard deviations, and one
// extended smoothing pass per output frequency. Inputs are immutable for the
// lifetime of the instance; build a new one when they change. The cache is
// guarded by a mutex so an instance may be shared, but independent instances
// per caller avoid the contention.
type Calendarization struct {
	smoother ports.StateSmoother
	logger   *internal.Logger

	observations []calendar.PeriodObservation
	grid         *calendar.DailyGrid
	weights      calendar.Weights
	bounds       calendar.Boundaries

	mu         sync.Mutex
	daily      *calendar.DailySeries
	dailyStdev *calendar.DailySeries
	aggregates map[calendar.Frequency]*calendar.AggregateSeries
}

// NewCalendarization validates the observations and builds the daily grid.
// Malformed input is rejected here with a configuration error; an empty
// observation set is accepted and yields unavailable results.
func NewCalendarization(obs []calendar.PeriodObservation, opts CalendarizationOptions, smoother ports.StateSmoother, logger *internal.Logger) (*Calendarization, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	normalized, err := calendar.NormalizeObservations(obs)
	if err != nil {
		return nil, err
	}
	grid, err := calendar.BuildGrid(normalized, opts.Span, opts.MaxGridDays)
	if err != nil {
		return nil, err
	}
	weights, err := calendar.CycleWeights(opts.Weights, grid.Start, grid.Len())
	if err != nil {
		return nil, err
	}
	// a non-zero total cannot be spread over days that all weigh nothing
	for i, o := range normalized {
		if o.Value != 0 && weights.Sum(grid.Index(o.Start), grid.Index(o.End)) == 0 {
			return nil, core.NewObservationError(i, fmt.Sprintf("%s falls only on zero-weight days", o))
		}
	}

	return &Calendarization{
		smoother:     smoother,
		logger:       logger.WithComponent("Calendarization"),
		observations: normalized,
		grid:         grid,
		weights:      weights,
		bounds:       calendar.NewBoundaries(grid.Starts, grid.Len()),
		aggregates:   make(map[calendar.Frequency]*calendar.AggregateSeries),
	}, nil
}

// Available reports whether there is anything to reconstruct
func (c *Calendarization) Available() bool {
	return len(c.observations) > 0 && c.grid.Len() > 0
}

// Grid returns the daily grid of this run
func (c *Calendarization) Grid() *calendar.DailyGrid {
	return c.grid
}

// Observations returns the normalized, sorted observations
func (c *Calendarization) Observations() []calendar.PeriodObservation {
	return c.observations
}

// Daily returns the reconstructed daily series, with standard deviations when
// withStdev is set.
func (c *Calendarization) Daily(ctx context.Context, withStdev bool) (calendar.DailySeries, error) {
	if !c.Available() {
		return calendar.DailySeries{Start: c.grid.Start}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dailyStdev != nil {
		c.logger.Trace("daily series with stdev served from cache")
		if withStdev {
			return *c.dailyStdev, nil
		}
		return c.dailyStdev.WithoutStdev(), nil
	}
	if !withStdev && c.daily != nil {
		c.logger.Trace("daily series served from cache")
		return *c.daily, nil
	}

	series, err := c.processBasic(ctx, withStdev)
	if err != nil {
		return calendar.DailySeries{}, err
	}
	if withStdev {
		c.dailyStdev = series
	} else {
		c.daily = series
	}
	return *series, nil
}

// Level returns the reconstructed daily values
func (c *Calendarization) Level(ctx context.Context) ([]float64, error) {
	s, err := c.Daily(ctx, false)
	return s.Values, err
}

// Stdev returns the standard deviations of the daily values
func (c *Calendarization) Stdev(ctx context.Context) ([]float64, error) {
	s, err := c.Daily(ctx, true)
	return s.Stdevs, err
}

// Aggregate returns totals at the given output frequency together with the
// daily path of the same smoothing pass.
func (c *Calendarization) Aggregate(ctx context.Context, freq calendar.Frequency, withStdev bool) (calendar.AggregateSeries, error) {
	if err := freq.Validate(); err != nil {
		return calendar.AggregateSeries{}, err
	}
	if !c.Available() {
		return calendar.AggregateSeries{Frequency: freq, Daily: calendar.DailySeries{Start: c.grid.Start}}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.aggregates[freq]
	if ok {
		c.logger.Trace("%s aggregates served from cache", freq)
	} else {
		var err error
		cached, err = c.processExtended(ctx, freq)
		if err != nil {
			return calendar.AggregateSeries{}, err
		}
		c.aggregates[freq] = cached
	}

	if withStdev {
		return *cached, nil
	}
	out := *cached
	out.HasStdev = false
	out.Daily = cached.Daily.WithoutStdev()
	out.Points = make([]calendar.AggregatePoint, len(cached.Points))
	for i, p := range cached.Points {
		p.Stdev = math.NaN()
		out.Points[i] = p
	}
	return out, nil
}

// processBasic runs the two-state model; variances are tracked only when
// requested.
func (c *Calendarization) processBasic(ctx context.Context, withVariance bool) (*calendar.DailySeries, error) {
	start := time.Now()
	model := ssf.NewBasicModel(c.bounds, c.weights)
	states, err := c.smoother.Smooth(ctx, model, c.grid.Y, withVariance)
	if err != nil {
		c.logger.Warn("basic smoothing failed (variance=%t): %v", withVariance, err)
		return nil, err
	}

	series := c.extractDaily(states, ssf.BasicLevel, withVariance)
	c.logger.Debug("basic pass over %d days (variance=%t) in %v", c.grid.Len(), withVariance, time.Since(start))
	return series, nil
}

// processExtended runs the three-state model for freq and reads each output
// period total off the aggregation sum at the period's last day.
func (c *Calendarization) processExtended(ctx context.Context, freq calendar.Frequency) (*calendar.AggregateSeries, error) {
	start := time.Now()
	model := ssf.NewExtendedModel(c.bounds, freq.Boundaries(c.grid), c.weights)
	states, err := c.smoother.Smooth(ctx, model, c.grid.Y, true)
	if err != nil {
		c.logger.Warn("extended smoothing failed (%s): %v", freq, err)
		return nil, err
	}

	out := &calendar.AggregateSeries{
		Available: true,
		Frequency: freq,
		HasStdev:  true,
		Daily:     *c.extractDaily(states, ssf.ExtendedLevel, true),
	}
	z := make([]float64, model.StateDim())
	for _, p := range freq.AggregationPeriods(c.grid) {
		last := p.To - 1
		if !model.AggregateLoading(last, z) {
			continue
		}
		out.Points = append(out.Points, calendar.AggregatePoint{
			Start:    p.Start,
			End:      p.End,
			Value:    states.ZX(last, z),
			Stdev:    sqrtVariance(states.ZVZ(last, z)),
			Complete: p.Complete,
		})
	}
	c.logger.Debug("extended pass over %d days for %s (%d periods) in %v", c.grid.Len(), freq, len(out.Points), time.Since(start))
	return out, nil
}

// extractDaily rescales the smoothed level by the day weights
func (c *Calendarization) extractDaily(states *ssf.SmoothedStates, level int, withVariance bool) *calendar.DailySeries {
	n := c.grid.Len()
	series := &calendar.DailySeries{
		Available: true,
		Start:     c.grid.Start,
		Values:    make([]float64, n),
	}
	if withVariance {
		series.Stdevs = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		w := c.weights.At(i)
		series.Values[i] = w * states.Mean(i, level)
		if withVariance {
			series.Stdevs[i] = w * sqrtVariance(states.Variance(i, level))
		}
	}
	return series
}

// sqrtVariance clamps tiny negative rounding residue before the square root
func sqrtVariance(v float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}
