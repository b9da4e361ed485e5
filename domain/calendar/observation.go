package calendar

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gocal/domain/core"
)

// DateLayout is the canonical textual form of a day
const DateLayout = "2006-01-02"

// PeriodObservation is a known aggregate over the half-open day interval [Start, End).
type PeriodObservation struct {
	Start time.Time `json:"start" db:"period_start"`
	End   time.Time `json:"end" db:"period_end"`
	Value float64   `json:"value" db:"value"`
}

// Days returns the number of days covered by the observation
func (o PeriodObservation) Days() int {
	return DaysBetween(o.Start, o.End)
}

func (o PeriodObservation) String() string {
	return fmt.Sprintf("[%s,%s): %g", o.Start.Format(DateLayout), o.End.Format(DateLayout), o.Value)
}

// Span is an explicit [Start, End) range the daily grid must cover.
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// DaysBetween counts calendar days from a to b (negative when b precedes a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// AddDays moves t by n calendar days
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// NormalizeObservations truncates dates to days, sorts by start and rejects
// malformed or overlapping observations. The input slice is not modified.
func NormalizeObservations(obs []PeriodObservation) ([]PeriodObservation, error) {
	out := make([]PeriodObservation, len(obs))
	for i, o := range obs {
		if o.Start.IsZero() || o.End.IsZero() {
			return nil, core.NewObservationError(i, "missing start or end date")
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, core.NewObservationError(i, "value is not finite")
		}
		n := PeriodObservation{Start: Day(o.Start), End: Day(o.End), Value: o.Value}
		if !n.End.After(n.Start) {
			return nil, core.NewObservationError(i, fmt.Sprintf("zero or negative length interval %s", n))
		}
		out[i] = n
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	for i := 1; i < len(out); i++ {
		if out[i].Start.Before(out[i-1].End) {
			return nil, fmt.Errorf("%w: %s and %s", core.ErrOverlappingObservations, out[i-1], out[i])
		}
	}
	return out, nil
}

// Validate checks that the span is a non-empty interval.
func (s *Span) Validate() error {
	if s == nil {
		return nil
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("%w: span needs both start and end", core.ErrOutsideSpan)
	}
	if !Day(s.End).After(Day(s.Start)) {
		return fmt.Errorf("%w: span end %s is not after start %s", core.ErrOutsideSpan,
			s.End.Format(DateLayout), s.Start.Format(DateLayout))
	}
	return nil
}
