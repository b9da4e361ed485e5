package kalman

import (
	"context"
	"fmt"
	"math"
	"time"

	"gocal/domain/core"
	"gocal/domain/ssf"
	"gocal/internal"

	"gonum.org/v1/gonum/mat"
)

// Smoother is the diffuse Kalman smoothing engine
type Smoother struct {
	logger *internal.Logger
}

// NewSmoother creates a smoothing engine logging through logger (nil uses
// the default logger)
func NewSmoother(logger *internal.Logger) *Smoother {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Smoother{logger: logger.WithComponent("KalmanSmoother")}
}

// Smooth runs the forward filter and the backward smoother over y. Variances
// are only computed when withVariance is set.
func (s *Smoother) Smooth(ctx context.Context, m ssf.Model, y []float64, withVariance bool) (*ssf.SmoothedStates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(y) != m.Len() {
		return nil, fmt.Errorf("observation vector has %d positions, model has %d", len(y), m.Len())
	}
	if m.Len() == 0 {
		return nil, core.ErrInsufficientData
	}

	start := time.Now()
	f, err := filter(m, y)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := smooth(m, f, withVariance)
	if err != nil {
		return nil, err
	}
	s.logger.Trace("smoothed %d positions (dim=%d, variance=%t) in %v", m.Len(), m.StateDim(), withVariance, time.Since(start))
	return out, nil
}

// smooth is the backward pass. During the diffuse prefix it carries the
// (r0, r1, N0, N1, N2) recursions, afterwards the ordinary (r, N) pair.
func smooth(m ssf.Model, f *filterResults, withVariance bool) (*ssf.SmoothedStates, error) {
	n, dim := f.n, f.dim
	out := ssf.NewSmoothedStates(n, dim, withVariance)

	tr := mat.NewDense(dim, dim, nil)
	z := make([]float64, dim)
	zv := mat.NewVecDense(dim, z)

	r0 := mat.NewVecDense(dim, nil)
	n0 := mat.NewDense(dim, dim, nil)
	var r1 *mat.VecDense
	var n1, n2 *mat.Dense

	mean := make([]float64, dim)
	for t := n - 1; t >= 0; t-- {
		m.T(t, tr)
		m.Z(t, z)
		p := f.covariance(t)

		if t >= f.diffuseEnd {
			switch f.kind[t] {
			case stepRegular:
				var mstar mat.VecDense
				mstar.MulVec(p, zv)
				l := gainComplement(tr, &mstar, zv, 1/f.fstar[t])
				r0 = backRecursion(l, r0, zv, f.v[t]/f.fstar[t])
				n0 = backInformation(l, n0, zv, 1/f.fstar[t])
			default:
				r0 = backRecursion(tr, r0, nil, 0)
				n0 = backInformation(tr, n0, nil, 0)
			}

			// a + P r
			var pr mat.VecDense
			pr.MulVec(p, r0)
			for i := range mean {
				mean[i] = f.state(t)[i] + pr.AtVec(i)
			}
			out.SetState(t, mean)
			if withVariance {
				var pn, pnp, v mat.Dense
				pn.Mul(p, n0)
				pnp.Mul(&pn, p)
				v.Sub(p, &pnp)
				out.SetCovariance(t, &v)
			}
			continue
		}

		if r1 == nil {
			r1 = mat.NewVecDense(dim, nil)
			n1 = mat.NewDense(dim, dim, nil)
			n2 = mat.NewDense(dim, dim, nil)
		}
		pinf := f.diffuseCovariance(t)

		switch f.kind[t] {
		case stepDiffuse:
			finf, fstar := f.finf[t], f.fstar[t]
			f1, f2 := 1/finf, -fstar/(finf*finf)
			var minf, mstar mat.VecDense
			minf.MulVec(pinf, zv)
			mstar.MulVec(p, zv)

			// K0 = T Minf F1, K1 = T (M* F1 + Minf F2)
			var k0, k1, tmpv mat.VecDense
			k0.MulVec(tr, &minf)
			k0.ScaleVec(f1, &k0)
			tmpv.AddScaledVec(scaledVec(&mstar, f1), f2, &minf)
			k1.MulVec(tr, &tmpv)

			// L0 = T - K0 z', L1 = -K1 z'
			var l0, l1 mat.Dense
			l0.Outer(1, &k0, zv)
			l0.Sub(tr, &l0)
			l1.Outer(-1, &k1, zv)

			// r1 = z v F1 + L0' r1 + L1' r0 ; r0 = L0' r0
			var nr0, nr1, tmp mat.VecDense
			nr1.MulVec(l0.T(), r1)
			tmp.MulVec(l1.T(), r0)
			nr1.AddVec(&nr1, &tmp)
			nr1.AddScaledVec(&nr1, f.v[t]*f1, zv)
			nr0.MulVec(l0.T(), r0)

			var zz mat.Dense
			zz.Outer(1, zv, zv)

			nn0 := sandwich(&l0, n0, &l0)
			nn1 := sandwich(&l0, n1, &l0)
			nn1.Add(nn1, sandwich(&l1, n0, &l0))
			nn1.Add(nn1, sandwich(&l0, n0, &l1))
			nn1.Add(nn1, scaledDense(&zz, f1))
			nn2 := sandwich(&l0, n2, &l0)
			nn2.Add(nn2, sandwich(&l0, n1, &l1))
			nn2.Add(nn2, sandwich(&l1, n1, &l0))
			nn2.Add(nn2, sandwich(&l1, n0, &l1))
			nn2.Add(nn2, scaledDense(&zz, f2))

			r0, r1 = &nr0, &nr1
			n0, n1, n2 = nn0, nn1, nn2
		case stepRegular:
			var mstar mat.VecDense
			mstar.MulVec(p, zv)
			l0 := gainComplement(tr, &mstar, zv, 1/f.fstar[t])
			r0 = backRecursion(l0, r0, zv, f.v[t]/f.fstar[t])
			n0 = backInformation(l0, n0, zv, 1/f.fstar[t])
			r1 = backRecursion(tr, r1, nil, 0)
			n1 = sandwich(tr, n1, l0)
			n2 = sandwich(tr, n2, tr)
		default:
			r0 = backRecursion(tr, r0, nil, 0)
			r1 = backRecursion(tr, r1, nil, 0)
			n0 = sandwich(tr, n0, tr)
			n1 = sandwich(tr, n1, tr)
			n2 = sandwich(tr, n2, tr)
		}

		// a + P* r0 + Pinf r1
		var pr0, pr1 mat.VecDense
		pr0.MulVec(p, r0)
		pr1.MulVec(pinf, r1)
		for i := range mean {
			mean[i] = f.state(t)[i] + pr0.AtVec(i) + pr1.AtVec(i)
		}
		out.SetState(t, mean)
		if withVariance {
			// P* - P* N0 P* - (Pinf N1 P*)' - Pinf N1 P* - Pinf N2 Pinf
			var v mat.Dense
			v.CloneFrom(p)
			v.Sub(&v, sandwich(p, n0, p))
			cross := sandwich(pinf, n1, p)
			v.Sub(&v, cross)
			v.Sub(&v, cross.T())
			v.Sub(&v, sandwich(pinf, n2, pinf))
			out.SetCovariance(t, &v)
		}
	}

	for t := 0; t < n; t++ {
		for _, x := range out.State(t) {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: non-finite smoothed state at position %d", core.ErrNumericalFailure, t)
			}
		}
	}
	return out, nil
}

// gainComplement returns L = T - T M z' / F, with invF = 1/F
func gainComplement(tr *mat.Dense, m *mat.VecDense, z *mat.VecDense, invF float64) *mat.Dense {
	var k mat.VecDense
	k.MulVec(tr, m)
	var l mat.Dense
	l.Outer(invF, &k, z)
	l.Sub(tr, &l)
	return &l
}

// backRecursion returns z*c + L' r (z may be nil)
func backRecursion(l *mat.Dense, r *mat.VecDense, z *mat.VecDense, c float64) *mat.VecDense {
	var out mat.VecDense
	out.MulVec(l.T(), r)
	if z != nil {
		out.AddScaledVec(&out, c, z)
	}
	return &out
}

// backInformation returns z z' c + L' N L (z may be nil)
func backInformation(l *mat.Dense, n *mat.Dense, z *mat.VecDense, c float64) *mat.Dense {
	out := sandwich(l, n, l)
	if z != nil {
		var zz mat.Dense
		zz.Outer(c, z, z)
		out.Add(out, &zz)
	}
	return out
}

// sandwich returns A' N B
func sandwich(a, n, b *mat.Dense) *mat.Dense {
	var tmp, out mat.Dense
	tmp.Mul(a.T(), n)
	out.Mul(&tmp, b)
	return &out
}

func scaledVec(v *mat.VecDense, c float64) *mat.VecDense {
	var out mat.VecDense
	out.ScaleVec(c, v)
	return &out
}

func scaledDense(m *mat.Dense, c float64) *mat.Dense {
	var out mat.Dense
	out.Scale(c, m)
	return &out
}
