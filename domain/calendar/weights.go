package calendar

import (
	"fmt"
	"math"
	"time"

	"gocal/domain/core"
)

// Weights are per-day multipliers aligned to the grid. The zero value is the
// uniform weight 1 and allocates nothing.
type Weights struct {
	values []float64
}

// ValidatePattern checks a Monday-first day-of-week pattern. An empty pattern
// is valid and means uniform weights.
func ValidatePattern(pattern []float64) error {
	if len(pattern) == 0 {
		return nil
	}
	if len(pattern) != 7 {
		return fmt.Errorf("%w: expected 7 values (Monday..Sunday), got %d", core.ErrInvalidWeights, len(pattern))
	}
	positive := false
	for i, w := range pattern {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: weight %d must be a finite non-negative number", core.ErrInvalidWeights, i)
		}
		if w > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("%w: at least one weight must be positive", core.ErrInvalidWeights)
	}
	return nil
}

// CycleWeights expands the Monday-first pattern over n days starting at start.
func CycleWeights(pattern []float64, start time.Time, n int) (Weights, error) {
	if err := ValidatePattern(pattern); err != nil {
		return Weights{}, err
	}
	if len(pattern) == 0 {
		return Weights{}, nil
	}
	offset := MondayIndex(start)
	values := make([]float64, n)
	for i := range values {
		values[i] = pattern[(offset+i)%7]
	}
	return Weights{values: values}, nil
}

// MondayIndex returns 0 for Monday through 6 for Sunday
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// At returns the weight of grid position i
func (w Weights) At(i int) float64 {
	if w.values == nil {
		return 1
	}
	return w.values[i]
}

// Sum adds the weights of grid positions [from, to)
func (w Weights) Sum(from, to int) float64 {
	if w.values == nil {
		return float64(to - from)
	}
	total := 0.0
	for _, v := range w.values[from:to] {
		total += v
	}
	return total
}

// IsUniform reports whether no pattern was materialized
func (w Weights) IsUniform() bool {
	return w.values == nil
}
