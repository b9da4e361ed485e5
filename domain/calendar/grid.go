package calendar

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gocal/domain/core"
)

// DailyGrid is the contiguous day timeline of one calendarization run.
// Y holds the observation vector with NaN marking missing positions: each
// observation's value sits at the last day of its interval.
type DailyGrid struct {
	Start time.Time
	End   time.Time
	Y     []float64
	// Starts are the sorted grid indices opening a cumulation period.
	Starts []int
}

// Missing is the marker of an unobserved grid position
var Missing = math.NaN()

// IsMissing reports whether v marks an unobserved position
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// BuildGrid lays the normalized observations on a daily grid covering the
// union of the observed range and the optional requested span. maxDays <= 0
// disables the length check.
func BuildGrid(obs []PeriodObservation, span *Span, maxDays int) (*DailyGrid, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if len(obs) == 0 && span == nil {
		return &DailyGrid{}, nil
	}

	var start, end time.Time
	if len(obs) > 0 {
		start = obs[0].Start
		end = obs[0].End
		for _, o := range obs[1:] {
			if o.End.After(end) {
				end = o.End
			}
		}
	}
	if span != nil {
		if start.IsZero() || Day(span.Start).Before(start) {
			start = Day(span.Start)
		}
		if end.IsZero() || Day(span.End).After(end) {
			end = Day(span.End)
		}
	}

	n := DaysBetween(start, end)
	if maxDays > 0 && n > maxDays {
		return nil, fmt.Errorf("%w: %d days exceeds limit of %d", core.ErrSpanTooLong, n, maxDays)
	}

	g := &DailyGrid{Start: start, End: end, Y: make([]float64, n)}
	for i := range g.Y {
		g.Y[i] = Missing
	}

	// boundaries: grid origin, every observation start and the day after it ends
	marks := map[int]struct{}{0: {}}
	for _, o := range obs {
		// the grid covers every observation, so s >= 0 and e <= n
		s, e := g.Index(o.Start), g.Index(o.End)
		g.Y[e-1] = o.Value
		marks[s] = struct{}{}
		if e < n {
			marks[e] = struct{}{}
		}
	}
	g.Starts = make([]int, 0, len(marks))
	for k := range marks {
		g.Starts = append(g.Starts, k)
	}
	sort.Ints(g.Starts)
	return g, nil
}

// Len is the number of days on the grid
func (g *DailyGrid) Len() int {
	return len(g.Y)
}

// Index maps a date to its grid position
func (g *DailyGrid) Index(t time.Time) int {
	return DaysBetween(g.Start, t)
}

// Date maps a grid position back to its calendar day
func (g *DailyGrid) Date(i int) time.Time {
	return AddDays(g.Start, i)
}

// ObservedCount counts non-missing positions
func (g *DailyGrid) ObservedCount() int {
	n := 0
	for _, v := range g.Y {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}
