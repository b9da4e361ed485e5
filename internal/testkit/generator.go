package testkit

import (
	"math"
	"math/rand"
	"time"

	"gocal/domain/calendar"
)

// GeneratorConfig configures the synthetic flow generator
type GeneratorConfig struct {
	Start time.Time `json:"start"`
	Days  int       `json:"days"`
	// Level is the mean daily flow at the start
	Level float64 `json:"level"`
	// Drift is added to the level every day
	Drift float64 `json:"drift"`
	// Noise is the daily random-walk step size
	Noise float64 `json:"noise"`
	// Weights is a Monday-first day-of-week pattern, empty for uniform
	Weights []float64 `json:"weights,omitempty"`
	Seed    int64     `json:"seed"`
}

// DefaultGeneratorConfig returns a half year of weekday-heavy flows
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Start:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:    182,
		Level:   100,
		Drift:   0.1,
		Noise:   2,
		Weights: []float64{1.1, 1.1, 1.1, 1.1, 1.2, 0.8, 0.6},
		Seed:    42,
	}
}

// Generator produces daily flows and period observations aggregated from them
type Generator struct {
	config GeneratorConfig
	rng    *rand.Rand
}

// NewGenerator creates a deterministic generator for the given seed
func NewGenerator(config GeneratorConfig) *Generator {
	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Daily generates the underlying daily series
func (g *Generator) Daily() []float64 {
	out := make([]float64, g.config.Days)
	level := g.config.Level
	for i := range out {
		w := 1.0
		if len(g.config.Weights) == 7 {
			w = g.config.Weights[calendar.MondayIndex(calendar.AddDays(g.config.Start, i))]
		}
		out[i] = math.Max(0, w*level)
		level += g.config.Drift + g.config.Noise*g.rng.NormFloat64()
	}
	return out
}

// Monthly sums daily flows into calendar-month observations. Partial months
// at either end are kept.
func (g *Generator) Monthly(daily []float64) []calendar.PeriodObservation {
	var out []calendar.PeriodObservation
	from := 0
	for from < len(daily) {
		start := calendar.AddDays(g.config.Start, from)
		next := calendar.FrequencyMonthly.NextPeriodStart(start)
		to := from + calendar.DaysBetween(start, next)
		if to > len(daily) {
			to = len(daily)
		}
		out = append(out, g.observation(daily, from, to))
		from = to
	}
	return out
}

// Irregular sums daily flows over random intervals of minLen..maxLen days,
// dropping each interval with probability gap to leave holes.
func (g *Generator) Irregular(daily []float64, minLen, maxLen int, gap float64) []calendar.PeriodObservation {
	var out []calendar.PeriodObservation
	for from := 0; from < len(daily); {
		to := from + minLen + g.rng.Intn(maxLen-minLen+1)
		if to > len(daily) {
			to = len(daily)
		}
		if g.rng.Float64() >= gap {
			out = append(out, g.observation(daily, from, to))
		}
		from = to
	}
	return out
}

func (g *Generator) observation(daily []float64, from, to int) calendar.PeriodObservation {
	total := 0.0
	for _, v := range daily[from:to] {
		total += v
	}
	return calendar.PeriodObservation{
		Start: calendar.AddDays(g.config.Start, from),
		End:   calendar.AddDays(g.config.Start, to),
		Value: total,
	}
}
