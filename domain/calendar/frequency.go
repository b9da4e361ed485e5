package calendar

import (
	"fmt"
	"strings"
	"time"

	"gocal/domain/core"
)

// Frequency describes how the daily grid is partitioned into output periods
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyHalfYearly Frequency = "half-yearly"
	FrequencyYearly     Frequency = "yearly"
)

// Frequencies lists the supported output frequencies from finest to coarsest
var Frequencies = []Frequency{
	FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
	FrequencyQuarterly, FrequencyHalfYearly, FrequencyYearly,
}

// ParseFrequency accepts the canonical names plus a few common aliases
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day", "d":
		return FrequencyDaily, nil
	case "weekly", "week", "w":
		return FrequencyWeekly, nil
	case "monthly", "month", "m":
		return FrequencyMonthly, nil
	case "quarterly", "quarter", "q":
		return FrequencyQuarterly, nil
	case "half-yearly", "halfyearly", "semiannual", "h":
		return FrequencyHalfYearly, nil
	case "yearly", "annual", "year", "y":
		return FrequencyYearly, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownFrequency, s)
}

func (f Frequency) String() string { return string(f) }

// Validate rejects values outside Frequencies
func (f Frequency) Validate() error {
	for _, known := range Frequencies {
		if f == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", core.ErrUnknownFrequency, string(f))
}

// PeriodStart returns the first day of the period containing t
func (f Frequency) PeriodStart(t time.Time) time.Time {
	d := Day(t)
	y, m, _ := d.Date()
	switch f {
	case FrequencyWeekly:
		return AddDays(d, -MondayIndex(d))
	case FrequencyMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case FrequencyQuarterly:
		return time.Date(y, m-(m-1)%3, 1, 0, 0, 0, 0, time.UTC)
	case FrequencyHalfYearly:
		return time.Date(y, m-(m-1)%6, 1, 0, 0, 0, 0, time.UTC)
	case FrequencyYearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

// NextPeriodStart returns the first day of the period following the one containing t
func (f Frequency) NextPeriodStart(t time.Time) time.Time {
	s := f.PeriodStart(t)
	switch f {
	case FrequencyWeekly:
		return AddDays(s, 7)
	case FrequencyMonthly:
		return s.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return s.AddDate(0, 3, 0)
	case FrequencyHalfYearly:
		return s.AddDate(0, 6, 0)
	case FrequencyYearly:
		return s.AddDate(1, 0, 0)
	default:
		return AddDays(s, 1)
	}
}

// AggregationPeriod is one output period clipped to the grid
type AggregationPeriod struct {
	Start    time.Time
	End      time.Time
	From, To int // grid index range [From, To)
	Complete bool
}

// AggregationPeriods partitions the grid by the period boundaries of f
func (f Frequency) AggregationPeriods(g *DailyGrid) []AggregationPeriod {
	if g == nil || g.Len() == 0 {
		return nil
	}
	var out []AggregationPeriod
	for cur := g.Start; cur.Before(g.End); {
		next := f.NextPeriodStart(cur)
		end := next
		if end.After(g.End) {
			end = g.End
		}
		out = append(out, AggregationPeriod{
			Start:    cur,
			End:      end,
			From:     g.Index(cur),
			To:       g.Index(end),
			Complete: f.PeriodStart(cur).Equal(cur) && end.Equal(next),
		})
		cur = end
	}
	return out
}

// Boundaries returns the cumulation boundaries induced by f on the grid
func (f Frequency) Boundaries(g *DailyGrid) Boundaries {
	periods := f.AggregationPeriods(g)
	starts := make([]int, len(periods))
	for i, p := range periods {
		starts[i] = p.From
	}
	return NewBoundaries(starts, g.Len())
}
