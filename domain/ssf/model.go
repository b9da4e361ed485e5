// Package ssf holds the linear Gaussian state-space systems used for
// calendarization.
//
// Every model has the form
//
//	y_t     = Z_t a_t                 (exact measurement, missing when y_t is NaN)
//	a_{t+1} = T_t a_t + S e_t,  e_t ~ N(0, 1)
//
// with a partially diffuse initial state.
package ssf

import (
	"gonum.org/v1/gonum/mat"
)

// Model is the capability shared by the basic and extended calendarization
// systems. Positions run from 0 to Len()-1.
type Model interface {
	// StateDim is the dimension of the state vector
	StateDim() int
	// Len is the number of grid positions
	Len() int
	// T writes the transition from pos to pos+1 into tr (StateDim x StateDim).
	T(pos int, tr *mat.Dense)
	// TX pushes x forward in place: x <- T(pos) x
	TX(pos int, x []float64)
	// Z writes the measurement loading of pos into z
	Z(pos int, z []float64)
	// Selection is the loading S of the unit-variance process noise
	Selection() []float64
	// Initialization describes the initial state distribution
	Initialization() Initialization
}

// Initialization is a0 ~ N(A0, Pf0 + k * B B') with k -> infinity.
type Initialization struct {
	A0  []float64
	Pf0 *mat.SymDense
	// B marks the diffuse directions, StateDim x DiffuseDim
	B *mat.Dense
}

// DiffuseDim is the number of diffuse state directions
func (i Initialization) DiffuseDim() int {
	if i.B == nil {
		return 0
	}
	_, c := i.B.Dims()
	return c
}

// Pi0 returns B B', nil for a fully non-diffuse initialization
func (i Initialization) Pi0() *mat.SymDense {
	if i.DiffuseDim() == 0 {
		return nil
	}
	r, _ := i.B.Dims()
	p := mat.NewSymDense(r, nil)
	p.SymOuterK(1, i.B)
	return p
}

// levelInitialization builds the shared initial state: every cumulative sum
// starts at zero with no uncertainty and the level (last component) is diffuse.
func levelInitialization(dim int) Initialization {
	b := mat.NewDense(dim, 1, nil)
	b.Set(dim-1, 0, 1)
	return Initialization{
		A0:  make([]float64, dim),
		Pf0: mat.NewSymDense(dim, nil),
		B:   b,
	}
}
