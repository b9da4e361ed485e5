package ports

import (
	"context"

	"gocal/domain/ssf"
)

// StateSmoother is the smoothing engine contract: given a state-space system
// and its observation vector (NaN = missing) it returns the smoothed states,
// with covariances only when withVariance is set.
type StateSmoother interface {
	Smooth(ctx context.Context, model ssf.Model, y []float64, withVariance bool) (*ssf.SmoothedStates, error)
}
