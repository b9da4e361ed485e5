package ssf

import (
	"gocal/domain/calendar"

	"gonum.org/v1/gonum/mat"
)

// Indices of the basic model state (C, L)
const (
	BasicCumul = 0
	BasicLevel = 1
)

// BasicModel carries a running weighted sum C of the level L within each
// cumulation period. The observation of a period sits at its last day, where
// C + w*L equals the period total.
type BasicModel struct {
	bounds  calendar.Boundaries
	weights calendar.Weights
}

// NewBasicModel builds the two-state system over the given boundaries
func NewBasicModel(bounds calendar.Boundaries, weights calendar.Weights) *BasicModel {
	return &BasicModel{bounds: bounds, weights: weights}
}

func (m *BasicModel) StateDim() int { return 2 }
func (m *BasicModel) Len() int      { return m.bounds.Len() }

func (m *BasicModel) T(pos int, tr *mat.Dense) {
	tr.Zero()
	w := m.weights.At(pos)
	cumulRow(m.bounds.Classify(pos), tr, BasicCumul, BasicCumul, BasicLevel, w)
	tr.Set(BasicLevel, BasicLevel, 1)
}

func (m *BasicModel) TX(pos int, x []float64) {
	x[BasicCumul] = pushCumul(m.bounds.Classify(pos), x[BasicCumul], m.weights.At(pos)*x[BasicLevel])
}

func (m *BasicModel) Z(pos int, z []float64) {
	z[BasicCumul] = cumulLoading(m.bounds.Classify(pos))
	z[BasicLevel] = m.weights.At(pos)
}

func (m *BasicModel) Selection() []float64 { return []float64{0, 1} }

func (m *BasicModel) Initialization() Initialization { return levelInitialization(2) }

// Weight returns the day weight applied at pos
func (m *BasicModel) Weight(pos int) float64 { return m.weights.At(pos) }

// cumulRow fills the transition row of a cumulative sum. A period's last day
// hands a zero sum to the next period; its first day restarts from the
// weighted level alone.
func cumulRow(t calendar.PositionType, tr *mat.Dense, row, cumul, level int, w float64) {
	switch {
	case t.IsLast():
	case t.IsFirst():
		tr.Set(row, level, w)
	default:
		tr.Set(row, cumul, 1)
		tr.Set(row, level, w)
	}
}

func pushCumul(t calendar.PositionType, c, wl float64) float64 {
	switch {
	case t.IsLast():
		return 0
	case t.IsFirst():
		return wl
	default:
		return c + wl
	}
}

// cumulLoading is the measurement weight on a running sum: at the first day
// of a period the sum is empty.
func cumulLoading(t calendar.PositionType) float64 {
	if t.IsFirst() {
		return 0
	}
	return 1
}
