package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gocal/adapters/kalman"
	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/domain/ssf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSmoother records engine invocations and delegates to the real engine
// unless an error is programmed.
type MockSmoother struct {
	mock.Mock
	engine *kalman.Smoother
}

func newMockSmoother() *MockSmoother {
	return &MockSmoother{engine: kalman.NewSmoother(nil)}
}

func (m *MockSmoother) Smooth(ctx context.Context, model ssf.Model, y []float64, withVariance bool) (*ssf.SmoothedStates, error) {
	args := m.Called(model.StateDim(), withVariance)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return m.engine.Smooth(ctx, model, y, withVariance)
}

func mustDay(s string) time.Time {
	t, err := calendar.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func obs(start, end string, v float64) calendar.PeriodObservation {
	return calendar.PeriodObservation{Start: mustDay(start), End: mustDay(end), Value: v}
}

func twoMonths() []calendar.PeriodObservation {
	return []calendar.PeriodObservation{
		obs("2021-01-01", "2021-02-01", 310),
		obs("2021-02-01", "2021-03-01", 280),
	}
}

func irregular() []calendar.PeriodObservation {
	return []calendar.PeriodObservation{
		obs("2021-01-11", "2021-02-03", 400),
		obs("2021-01-01", "2021-01-11", 120),
		obs("2021-02-03", "2021-02-04", 17),
		obs("2021-02-10", "2021-03-01", 250),
	}
}

func newCal(t *testing.T, o []calendar.PeriodObservation, opts CalendarizationOptions) *Calendarization {
	t.Helper()
	c, err := NewCalendarization(o, opts, kalman.NewSmoother(nil), nil)
	require.NoError(t, err)
	return c
}

func assertConserved(t *testing.T, o []calendar.PeriodObservation, daily calendar.DailySeries) {
	t.Helper()
	for _, p := range o {
		got := daily.Sum(p.Start, p.End)
		assert.InDelta(t, p.Value, got, 1e-6*(1+math.Abs(p.Value)), "observation %s", p)
	}
}

func TestCalendarization_FlatTwoMonths(t *testing.T) {
	c := newCal(t, twoMonths(), CalendarizationOptions{})
	require.True(t, c.Available())

	daily, err := c.Daily(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 59, daily.Len())
	assert.Nil(t, daily.Stdevs)
	for i, v := range daily.Values {
		assert.InDelta(t, 10.0, v, 1e-7, "day %d", i)
	}

	monthly, err := c.Aggregate(context.Background(), calendar.FrequencyMonthly, true)
	require.NoError(t, err)
	require.Len(t, monthly.Points, 2)
	assert.InDelta(t, 310.0, monthly.Points[0].Value, 1e-6)
	assert.InDelta(t, 280.0, monthly.Points[1].Value, 1e-6)
	assert.True(t, monthly.Points[0].Complete)
	assert.InDelta(t, 0.0, monthly.Points[0].Stdev, 1e-2)
}

func TestCalendarization_WeeklyTotals(t *testing.T) {
	c := newCal(t, twoMonths(), CalendarizationOptions{})

	weekly, err := c.Aggregate(context.Background(), calendar.FrequencyWeekly, false)
	require.NoError(t, err)
	require.Len(t, weekly.Points, 9)

	// 2021-01-01 is a Friday: the first week is clipped to three days
	first := weekly.Points[0]
	assert.Equal(t, mustDay("2021-01-04"), first.End)
	assert.False(t, first.Complete)
	assert.InDelta(t, 30.0, first.Value, 1e-6)
	for _, p := range weekly.Points[1:] {
		assert.True(t, p.Complete)
		assert.InDelta(t, 70.0, p.Value, 1e-6)
	}
	assert.False(t, weekly.HasStdev)
	assert.True(t, math.IsNaN(first.Stdev))
	assert.Nil(t, weekly.Daily.Stdevs)
}

func TestCalendarization_ConservesIrregularObservations(t *testing.T) {
	o := irregular()
	c := newCal(t, o, CalendarizationOptions{Weights: []float64{1, 1, 1, 1, 1, 0.5, 0.2}})

	daily, err := c.Daily(context.Background(), true)
	require.NoError(t, err)
	assertConserved(t, o, daily)

	for _, f := range []calendar.Frequency{calendar.FrequencyWeekly, calendar.FrequencyMonthly} {
		agg, err := c.Aggregate(context.Background(), f, true)
		require.NoError(t, err)
		assertConserved(t, o, agg.Daily)

		// aggregates agree with the daily path of the same pass
		for _, p := range agg.Points {
			sum := agg.Daily.Sum(p.Start, p.End)
			assert.InDelta(t, sum, p.Value, 1e-6*(1+math.Abs(sum)), "%s period %s", f, p.Start.Format(calendar.DateLayout))
		}
		// and the two models reconstruct the same days
		assert.InDeltaSlice(t, daily.Values, agg.Daily.Values, 1e-6)
		assert.InDeltaSlice(t, daily.Stdevs, agg.Daily.Stdevs, 1e-6)
	}
}

func TestCalendarization_WeightedDaysScaleWithPattern(t *testing.T) {
	o := []calendar.PeriodObservation{obs("2021-01-04", "2021-01-11", 60)}
	c := newCal(t, o, CalendarizationOptions{Weights: []float64{1, 1, 1, 1, 1, 0.5, 0.5}})

	daily, err := c.Daily(context.Background(), false)
	require.NoError(t, err)
	// one week, five full days and two half days: level 10
	assert.InDelta(t, 10.0, daily.Values[0], 1e-7)
	assert.InDelta(t, 5.0, daily.Values[5], 1e-7)
	assert.InDelta(t, 5.0, daily.Values[6], 1e-7)
}

func TestCalendarization_UniformPatternIsNeutral(t *testing.T) {
	plain := newCal(t, irregular(), CalendarizationOptions{})
	ones := newCal(t, irregular(), CalendarizationOptions{Weights: []float64{1, 1, 1, 1, 1, 1, 1}})

	a, err := plain.Daily(context.Background(), true)
	require.NoError(t, err)
	b, err := ones.Daily(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)
	assert.Equal(t, a.Stdevs, b.Stdevs)
}

func TestCalendarization_FastAndFullAgree(t *testing.T) {
	fast := newCal(t, irregular(), CalendarizationOptions{})
	full := newCal(t, irregular(), CalendarizationOptions{})

	a, err := fast.Daily(context.Background(), false)
	require.NoError(t, err)
	b, err := full.Daily(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, a.Stdevs)
	assert.Len(t, b.Stdevs, b.Len())
	assert.InDeltaSlice(t, a.Values, b.Values, 1e-12)
}

func TestCalendarization_StdevShape(t *testing.T) {
	c := newCal(t, twoMonths(), CalendarizationOptions{Span: &calendar.Span{Start: mustDay("2021-01-01"), End: mustDay("2021-03-10")}})

	daily, err := c.Daily(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 68, daily.Len())

	s := daily.Stdevs
	for i, v := range s {
		assert.False(t, math.IsNaN(v), "day %d", i)
		assert.GreaterOrEqual(t, v, 0.0, "day %d", i)
	}
	// tightest inside a period, looser at the boundary, loosest at the edges
	assert.Less(t, s[15], s[30])
	assert.Less(t, s[30], s[0])
	assert.Less(t, s[58], s[67])
	for i := 59; i < 68; i++ {
		assert.InDelta(t, 10.0, daily.Values[i], 1e-7, "extrapolated day %d", i)
		assert.Greater(t, s[i], s[i-1])
	}
}

func TestCalendarization_Memoization(t *testing.T) {
	sm := newMockSmoother()
	sm.On("Smooth", 2, false).Return(nil).Once()
	sm.On("Smooth", 2, true).Return(nil).Once()
	sm.On("Smooth", 3, true).Return(nil).Twice()

	c, err := NewCalendarization(irregular(), CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Daily(ctx, false)
	require.NoError(t, err)
	again, err := c.Daily(ctx, false)
	require.NoError(t, err)
	assert.Same(t, &first.Values[0], &again.Values[0])

	withStdev, err := c.Daily(ctx, true)
	require.NoError(t, err)
	stripped, err := c.Daily(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, stripped.Stdevs)
	assert.Same(t, &withStdev.Values[0], &stripped.Values[0])

	m1, err := c.Aggregate(ctx, calendar.FrequencyMonthly, true)
	require.NoError(t, err)
	m2, err := c.Aggregate(ctx, calendar.FrequencyMonthly, true)
	require.NoError(t, err)
	assert.Same(t, &m1.Points[0], &m2.Points[0])
	_, err = c.Aggregate(ctx, calendar.FrequencyMonthly, false)
	require.NoError(t, err)
	_, err = c.Aggregate(ctx, calendar.FrequencyWeekly, false)
	require.NoError(t, err)

	sm.AssertExpectations(t)
	sm.AssertNumberOfCalls(t, "Smooth", 4)
}

func TestCalendarization_ConcurrentCallersShareOnePass(t *testing.T) {
	sm := newMockSmoother()
	sm.On("Smooth", 2, true).Return(nil).Once()

	c, err := NewCalendarization(twoMonths(), CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Daily(context.Background(), true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	sm.AssertNumberOfCalls(t, "Smooth", 1)
}

func TestCalendarization_EngineFailureIsNotCached(t *testing.T) {
	boom := errors.New("singular system")
	sm := newMockSmoother()
	sm.On("Smooth", 3, true).Return(nil).Once()
	sm.On("Smooth", 3, true).Return(boom).Once()
	sm.On("Smooth", 3, true).Return(nil).Once()

	c, err := NewCalendarization(twoMonths(), CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Aggregate(ctx, calendar.FrequencyWeekly, true)
	require.NoError(t, err)

	_, err = c.Aggregate(ctx, calendar.FrequencyMonthly, true)
	assert.Same(t, boom, err)

	// earlier results survive, the failed one is retried
	_, err = c.Aggregate(ctx, calendar.FrequencyWeekly, true)
	require.NoError(t, err)
	monthly, err := c.Aggregate(ctx, calendar.FrequencyMonthly, true)
	require.NoError(t, err)
	assert.Len(t, monthly.Points, 2)

	sm.AssertNumberOfCalls(t, "Smooth", 3)
}

func TestCalendarization_Unavailable(t *testing.T) {
	sm := newMockSmoother()

	c, err := NewCalendarization(nil, CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)
	assert.False(t, c.Available())

	daily, err := c.Daily(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, daily.Available)
	assert.Empty(t, daily.Values)

	c, err = NewCalendarization(nil, CalendarizationOptions{Span: &calendar.Span{Start: mustDay("2021-01-01"), End: mustDay("2021-02-01")}}, sm, nil)
	require.NoError(t, err)
	agg, err := c.Aggregate(context.Background(), calendar.FrequencyMonthly, true)
	require.NoError(t, err)
	assert.False(t, agg.Available)
	assert.Empty(t, agg.Points)

	sm.AssertNotCalled(t, "Smooth", mock.Anything, mock.Anything)
}

func TestCalendarization_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		obs  []calendar.PeriodObservation
		opts CalendarizationOptions
		want error
	}{
		{"overlap", []calendar.PeriodObservation{obs("2021-01-01", "2021-01-20", 1), obs("2021-01-10", "2021-02-01", 1)}, CalendarizationOptions{}, core.ErrOverlappingObservations},
		{"empty interval", []calendar.PeriodObservation{obs("2021-01-01", "2021-01-01", 1)}, CalendarizationOptions{}, core.ErrInvalidObservation},
		{"bad weights", twoMonths(), CalendarizationOptions{Weights: []float64{1, 2}}, core.ErrInvalidWeights},
		{"grid too long", twoMonths(), CalendarizationOptions{MaxGridDays: 31}, core.ErrSpanTooLong},
		{"inverted span", twoMonths(), CalendarizationOptions{Span: &calendar.Span{Start: mustDay("2021-03-01"), End: mustDay("2021-01-01")}}, core.ErrOutsideSpan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newMockSmoother()
			_, err := NewCalendarization(tt.obs, tt.opts, sm, nil)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsConfigurationError(err))
			sm.AssertNotCalled(t, "Smooth", mock.Anything, mock.Anything)
		})
	}
}

func TestCalendarization_ZeroWeightPeriods(t *testing.T) {
	sundaysOff := CalendarizationOptions{Weights: []float64{1, 1, 1, 1, 1, 1, 0}}
	sm := newMockSmoother()

	// 2021-01-03 is a Sunday
	_, err := NewCalendarization([]calendar.PeriodObservation{
		obs("2021-01-01", "2021-01-03", 10),
		obs("2021-01-03", "2021-01-04", 5),
	}, sundaysOff, sm, nil)
	assert.ErrorIs(t, err, core.ErrInvalidObservation)
	assert.Contains(t, err.Error(), "#1")
	assert.True(t, core.IsConfigurationError(err))
	sm.AssertNotCalled(t, "Smooth", mock.Anything, mock.Anything)

	// a zero total on zero-weight days is consistent
	c := newCal(t, []calendar.PeriodObservation{
		obs("2021-01-01", "2021-01-03", 10),
		obs("2021-01-03", "2021-01-04", 0),
		obs("2021-01-04", "2021-01-11", 60),
	}, sundaysOff)
	assert.True(t, c.Available())
}

func TestCalendarization_UnknownFrequency(t *testing.T) {
	sm := newMockSmoother()
	c, err := NewCalendarization(twoMonths(), CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)

	for _, f := range []calendar.Frequency{"fortnightly", "", "Monthly"} {
		_, err := c.Aggregate(context.Background(), f, false)
		assert.ErrorIs(t, err, core.ErrUnknownFrequency, f)
		assert.True(t, core.IsConfigurationError(err))
	}
	sm.AssertNotCalled(t, "Smooth", mock.Anything, mock.Anything)

	empty, err := NewCalendarization(nil, CalendarizationOptions{}, sm, nil)
	require.NoError(t, err)
	_, err = empty.Aggregate(context.Background(), "fortnightly", false)
	assert.ErrorIs(t, err, core.ErrUnknownFrequency)
}

func TestCalendarization_LevelAndStdev(t *testing.T) {
	c := newCal(t, twoMonths(), CalendarizationOptions{})
	level, err := c.Level(context.Background())
	require.NoError(t, err)
	stdev, err := c.Stdev(context.Background())
	require.NoError(t, err)
	assert.Len(t, level, 59)
	assert.Len(t, stdev, 59)
}
