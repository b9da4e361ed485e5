package calendar

import (
	"encoding/json"
	"math"
	"time"

	"gocal/domain/core"
)

// DailySeries is the reconstructed daily flow. Stdevs is nil when standard
// errors were not requested.
type DailySeries struct {
	Available bool      `json:"available"`
	Start     time.Time `json:"start"`
	Values    []float64 `json:"values"`
	Stdevs    []float64 `json:"stdevs,omitempty"`
}

// Len is the number of days in the series
func (s DailySeries) Len() int { return len(s.Values) }

// HasStdev reports whether standard deviations are present
func (s DailySeries) HasStdev() bool { return s.Stdevs != nil }

// Date returns the calendar day of position i
func (s DailySeries) Date(i int) time.Time { return AddDays(s.Start, i) }

// Sum adds the daily values over [from, to)
func (s DailySeries) Sum(from, to time.Time) float64 {
	i0, i1 := DaysBetween(s.Start, from), DaysBetween(s.Start, to)
	if i0 < 0 {
		i0 = 0
	}
	if i1 > len(s.Values) {
		i1 = len(s.Values)
	}
	total := 0.0
	for i := i0; i < i1; i++ {
		total += s.Values[i]
	}
	return total
}

// WithoutStdev returns a view sharing the values but dropping deviations
func (s DailySeries) WithoutStdev() DailySeries {
	s.Stdevs = nil
	return s
}

// AggregatePoint is the estimated total of one output period
type AggregatePoint struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Value    float64   `json:"value"`
	Stdev    float64   `json:"stdev"`
	Complete bool      `json:"complete"`
}

// MarshalJSON writes a missing deviation as null
func (p AggregatePoint) MarshalJSON() ([]byte, error) {
	type plain AggregatePoint
	out := struct {
		plain
		Stdev *float64 `json:"stdev"`
	}{plain: plain(p)}
	if !math.IsNaN(p.Stdev) {
		out.Stdev = &p.Stdev
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null deviation back as NaN
func (p *AggregatePoint) UnmarshalJSON(data []byte) error {
	type plain AggregatePoint
	in := struct {
		*plain
		Stdev *float64 `json:"stdev"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	p.Stdev = math.NaN()
	if in.Stdev != nil {
		p.Stdev = *in.Stdev
	}
	return nil
}

// AggregateSeries holds output-frequency totals along with the daily path
// they were read from.
type AggregateSeries struct {
	Available bool             `json:"available"`
	Frequency Frequency        `json:"frequency"`
	Points    []AggregatePoint `json:"points"`
	HasStdev  bool             `json:"has_stdev"`
	Daily     DailySeries      `json:"daily"`
}

// Series is a stored collection of period observations
type Series struct {
	ID           core.SeriesID       `json:"id" db:"id"`
	Name         string              `json:"name" db:"name"`
	Weights      []float64           `json:"weights,omitempty" db:"-"`
	Observations []PeriodObservation `json:"observations" db:"-"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// RunSummary condenses the outcome of one calendarization run
type RunSummary struct {
	Days               int     `json:"days"`
	Observations       int     `json:"observations"`
	Total              float64 `json:"total"`
	Mean               float64 `json:"mean"`
	Median             float64 `json:"median"`
	Min                float64 `json:"min"`
	Max                float64 `json:"max"`
	P05                float64 `json:"p05"`
	P95                float64 `json:"p95"`
	MaxResidual        float64 `json:"max_residual"`
	MeanStdev          float64 `json:"mean_stdev,omitempty"`
	MaxStdev           float64 `json:"max_stdev,omitempty"`
	AggregatePeriods   int     `json:"aggregate_periods,omitempty"`
	CompleteAggregates int     `json:"complete_aggregates,omitempty"`
}

// Run records one computed calendarization
type Run struct {
	ID        core.RunID     `json:"id" db:"id"`
	SeriesID  core.SeriesID  `json:"series_id" db:"series_id"`
	Frequency Frequency      `json:"frequency" db:"frequency"`
	WithStdev bool           `json:"with_stdev" db:"with_stdev"`
	InputHash core.InputHash `json:"input_hash" db:"input_hash"`
	Summary   RunSummary     `json:"summary" db:"-"`
	ElapsedMS int64          `json:"elapsed_ms" db:"elapsed_ms"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
