package ssf

import (
	"gocal/domain/calendar"

	"gonum.org/v1/gonum/mat"
)

// Indices of the extended model state (C_obs, C_agg, L)
const (
	ExtendedObsCumul = 0
	ExtendedAggCumul = 1
	ExtendedLevel    = 2
)

// ExtendedModel adds a second running sum that resets on the boundaries of an
// output frequency. Both sums are driven by the same level, so aggregates read
// off C_agg are consistent with the daily path. Only C_obs is measured.
type ExtendedModel struct {
	obs     calendar.Boundaries
	agg     calendar.Boundaries
	weights calendar.Weights
}

// NewExtendedModel builds the three-state system
func NewExtendedModel(obs, agg calendar.Boundaries, weights calendar.Weights) *ExtendedModel {
	return &ExtendedModel{obs: obs, agg: agg, weights: weights}
}

func (m *ExtendedModel) StateDim() int { return 3 }
func (m *ExtendedModel) Len() int      { return m.obs.Len() }

func (m *ExtendedModel) T(pos int, tr *mat.Dense) {
	tr.Zero()
	w := m.weights.At(pos)
	cumulRow(m.obs.Classify(pos), tr, ExtendedObsCumul, ExtendedObsCumul, ExtendedLevel, w)
	cumulRow(m.agg.Classify(pos), tr, ExtendedAggCumul, ExtendedAggCumul, ExtendedLevel, w)
	tr.Set(ExtendedLevel, ExtendedLevel, 1)
}

func (m *ExtendedModel) TX(pos int, x []float64) {
	wl := m.weights.At(pos) * x[ExtendedLevel]
	x[ExtendedObsCumul] = pushCumul(m.obs.Classify(pos), x[ExtendedObsCumul], wl)
	x[ExtendedAggCumul] = pushCumul(m.agg.Classify(pos), x[ExtendedAggCumul], wl)
}

func (m *ExtendedModel) Z(pos int, z []float64) {
	z[ExtendedObsCumul] = cumulLoading(m.obs.Classify(pos))
	z[ExtendedAggCumul] = 0
	z[ExtendedLevel] = m.weights.At(pos)
}

func (m *ExtendedModel) Selection() []float64 { return []float64{0, 0, 1} }

func (m *ExtendedModel) Initialization() Initialization { return levelInitialization(3) }

// Weight returns the day weight applied at pos
func (m *ExtendedModel) Weight(pos int) float64 { return m.weights.At(pos) }

// AggregateLoading writes into z the derived measurement whose value at the
// last day of an output period is that period's total. It reports false when
// pos does not close an output period.
func (m *ExtendedModel) AggregateLoading(pos int, z []float64) bool {
	t := m.agg.Classify(pos)
	if !t.IsLast() {
		return false
	}
	z[ExtendedObsCumul] = 0
	z[ExtendedAggCumul] = cumulLoading(t)
	z[ExtendedLevel] = m.weights.At(pos)
	return true
}
