package ssf

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SmoothedStates holds per-position smoothed means and, optionally, their
// covariance matrices.
type SmoothedStates struct {
	dim   int
	n     int
	means []float64
	covs  []float64
}

// NewSmoothedStates allocates storage for n positions of a dim-state model
func NewSmoothedStates(n, dim int, withVariance bool) *SmoothedStates {
	s := &SmoothedStates{dim: dim, n: n, means: make([]float64, n*dim)}
	if withVariance {
		s.covs = make([]float64, n*dim*dim)
	}
	return s
}

func (s *SmoothedStates) Len() int          { return s.n }
func (s *SmoothedStates) Dim() int          { return s.dim }
func (s *SmoothedStates) HasVariance() bool { return s.covs != nil }

// Mean returns component i of the smoothed state at pos
func (s *SmoothedStates) Mean(pos, i int) float64 {
	return s.means[pos*s.dim+i]
}

// State returns the smoothed state at pos; the slice aliases internal storage
func (s *SmoothedStates) State(pos int) []float64 {
	return s.means[pos*s.dim : (pos+1)*s.dim]
}

// SetState stores the smoothed mean of pos
func (s *SmoothedStates) SetState(pos int, a []float64) {
	copy(s.means[pos*s.dim:(pos+1)*s.dim], a)
}

// SetCovariance stores the smoothed covariance of pos
func (s *SmoothedStates) SetCovariance(pos int, v mat.Matrix) {
	base := pos * s.dim * s.dim
	for i := 0; i < s.dim; i++ {
		for j := 0; j < s.dim; j++ {
			s.covs[base+i*s.dim+j] = v.At(i, j)
		}
	}
}

// Covariance returns the smoothed covariance of pos, or nil without variances
func (s *SmoothedStates) Covariance(pos int) *mat.SymDense {
	if s.covs == nil {
		return nil
	}
	base := pos * s.dim * s.dim
	data := make([]float64, s.dim*s.dim)
	copy(data, s.covs[base:base+s.dim*s.dim])
	return mat.NewSymDense(s.dim, data)
}

// Variance returns the smoothed variance of component i, NaN without variances
func (s *SmoothedStates) Variance(pos, i int) float64 {
	if s.covs == nil {
		return math.NaN()
	}
	return s.covs[pos*s.dim*s.dim+i*s.dim+i]
}

// ZX returns z'a at pos
func (s *SmoothedStates) ZX(pos int, z []float64) float64 {
	a := s.State(pos)
	v := 0.0
	for i, zi := range z {
		v += zi * a[i]
	}
	return v
}

// ZVZ returns z' V z at pos, NaN without variances
func (s *SmoothedStates) ZVZ(pos int, z []float64) float64 {
	if s.covs == nil {
		return math.NaN()
	}
	base := pos * s.dim * s.dim
	v := 0.0
	for i := 0; i < s.dim; i++ {
		for j := 0; j < s.dim; j++ {
			v += z[i] * s.covs[base+i*s.dim+j] * z[j]
		}
	}
	return v
}
