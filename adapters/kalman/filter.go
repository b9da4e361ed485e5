// Package kalman implements the smoothing engine used by calendarization: an
// exact diffuse Kalman filter followed by a backward state smoother
// (Durbin & Koopman, ch. 4-5) for univariate, noise-free measurements.
package kalman

import (
	"fmt"
	"math"

	"gocal/domain/calendar"
	"gocal/domain/core"
	"gocal/domain/ssf"

	"gonum.org/v1/gonum/mat"
)

const (
	// varianceEpsilon is the relative size below which a prediction error
	// variance is treated as zero
	varianceEpsilon = 1e-12
	// consistencyTolerance bounds the residual of an observation that carries
	// no new information
	consistencyTolerance = 1e-6
)

type stepKind uint8

const (
	stepMissing stepKind = iota
	stepRegular
	stepDiffuse
)

// filterResults keeps what the backward pass needs: predicted states and
// covariances, and the innovations of each position.
type filterResults struct {
	n, dim int
	// diffuseEnd is the first position with a fully proper prediction
	diffuseEnd int
	a          []float64
	pstar      []float64
	pinf       []float64
	kind       []stepKind
	v          []float64
	fstar      []float64
	finf       []float64
}

func newFilterResults(n, dim int) *filterResults {
	return &filterResults{
		n:     n,
		dim:   dim,
		a:     make([]float64, n*dim),
		pstar: make([]float64, n*dim*dim),
		kind:  make([]stepKind, n),
		v:     make([]float64, n),
		fstar: make([]float64, n),
		finf:  make([]float64, n),
	}
}

func (f *filterResults) state(t int) []float64 {
	return f.a[t*f.dim : (t+1)*f.dim]
}

func (f *filterResults) covariance(t int) *mat.Dense {
	dd := f.dim * f.dim
	return mat.NewDense(f.dim, f.dim, f.pstar[t*dd:(t+1)*dd])
}

func (f *filterResults) diffuseCovariance(t int) *mat.Dense {
	dd := f.dim * f.dim
	return mat.NewDense(f.dim, f.dim, f.pinf[t*dd:(t+1)*dd])
}

// filter runs the exact diffuse forward pass over y
func filter(m ssf.Model, y []float64) (*filterResults, error) {
	n, dim := m.Len(), m.StateDim()
	init := m.Initialization()
	res := newFilterResults(n, dim)

	a := make([]float64, dim)
	copy(a, init.A0)
	p := mat.DenseCopyOf(init.Pf0)
	diffuseLeft := init.DiffuseDim()
	pinf := mat.NewDense(dim, dim, nil)
	if diffuseLeft > 0 {
		pinf.Copy(init.Pi0())
	}
	res.diffuseEnd = n

	sel := mat.NewVecDense(dim, m.Selection())
	var noise mat.Dense
	noise.Outer(1, sel, sel)

	tr := mat.NewDense(dim, dim, nil)
	z := make([]float64, dim)
	zv := mat.NewVecDense(dim, z)
	var tmp mat.Dense

	for t := 0; t < n; t++ {
		if diffuseLeft > 0 && res.pinf == nil {
			res.pinf = make([]float64, n*dim*dim)
		}
		copy(res.state(t), a)
		copy(res.pstar[t*dim*dim:], p.RawMatrix().Data)
		if diffuseLeft > 0 {
			copy(res.pinf[t*dim*dim:], pinf.RawMatrix().Data)
		} else if res.diffuseEnd == n {
			res.diffuseEnd = t
		}

		m.Z(t, z)
		if !calendar.IsMissing(y[t]) {
			var mstar mat.VecDense
			mstar.MulVec(p, zv)
			fstar := mat.Dot(zv, &mstar)
			v := y[t] - mat.Dot(zv, mat.NewVecDense(dim, a))
			res.v[t], res.fstar[t] = v, fstar

			var minf mat.VecDense
			finf := 0.0
			if diffuseLeft > 0 {
				minf.MulVec(pinf, zv)
				finf = mat.Dot(zv, &minf)
				res.finf[t] = finf
			}

			switch {
			case diffuseLeft > 0 && finf > varianceEpsilon*scale(pinf, z):
				res.kind[t] = stepDiffuse
				// a += Minf v / Finf
				for i := range a {
					a[i] += minf.AtVec(i) * v / finf
				}
				// P* += Minf Minf' F*/Finf^2 - (M* Minf' + Minf M*')/Finf
				var upd mat.Dense
				upd.Outer(fstar/(finf*finf), &minf, &minf)
				p.Add(p, &upd)
				upd.Outer(1/finf, &mstar, &minf)
				p.Sub(p, &upd)
				upd.Outer(1/finf, &minf, &mstar)
				p.Sub(p, &upd)
				diffuseLeft--
				if diffuseLeft == 0 {
					pinf.Zero()
				} else {
					upd.Outer(1/finf, &minf, &minf)
					pinf.Sub(pinf, &upd)
				}
			case fstar > varianceEpsilon*scale(p, z):
				res.kind[t] = stepRegular
				for i := range a {
					a[i] += mstar.AtVec(i) * v / fstar
				}
				var upd mat.Dense
				upd.Outer(1/fstar, &mstar, &mstar)
				p.Sub(p, &upd)
			default:
				if math.Abs(v) > consistencyTolerance*(1+math.Abs(y[t])) {
					return nil, fmt.Errorf("%w: observation at position %d contradicts earlier data (residual %g)",
						core.ErrNumericalFailure, t, v)
				}
			}
		}

		// predict
		m.TX(t, a)
		m.T(t, tr)
		tmp.Mul(tr, p)
		p.Mul(&tmp, tr.T())
		p.Add(p, &noise)
		symmetrize(p)
		if diffuseLeft > 0 {
			tmp.Mul(tr, pinf)
			pinf.Mul(&tmp, tr.T())
		}
	}

	if diffuseLeft > 0 {
		return nil, fmt.Errorf("%w: diffuse level never identified by an observation", core.ErrInsufficientData)
	}
	return res, nil
}

// scale is the magnitude against which a prediction variance z'Pz is compared
func scale(p *mat.Dense, z []float64) float64 {
	s := 0.0
	for i, zi := range z {
		s += zi * zi * math.Abs(p.At(i, i))
	}
	return 1 + s
}

func symmetrize(p *mat.Dense) {
	r, _ := p.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (p.At(i, j) + p.At(j, i))
			p.Set(i, j, v)
			p.Set(j, i, v)
		}
	}
}
