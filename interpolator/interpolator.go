// Package interpolator builds the next candidate solution and residual from
// the reduced-problem's interpolation coefficients.
package interpolator

import (
	"errors"
	"math"

	"github.com/curioloop/itsolv/subspace"
	"github.com/curioloop/itsolv/vector"
)

// ErrZeroNorm is returned when the eigen-residual convention's
// renormalisation step divides by a solution of exactly zero norm.
var ErrZeroNorm = errors.New("itsolv: zero norm during eigen-residual renormalisation")

// Combine assembles the solution and residual for one root from column k of
// the interpolation matrix. P contributions are skipped when actionOnly is
// set, since the caller must add A p_j externally. When eigenResidual is
// set, the pair is renormalised by
// 1/√⟨solution,solution⟩ and the residual has eigenvalue*solution (and, for
// the augmented-Hessian linear-equations mode, the RHS vector) subtracted.
func Combine[V any](
	handler vector.Handler[V],
	ps *subspace.PSpace[V],
	qs *subspace.QSpace[V],
	rs *subspace.RSpace[V],
	dims subspace.Dimensions,
	col []float64,
	actionOnly bool,
	eigenResidual bool,
	eigenvalue float64,
	augmentedRHS V,
	hasAugmentedRHS bool,
) (solution, residual V, err error) {
	solution = handler.NewVector()
	residual = handler.NewVector()
	oP, oQ, oR := dims.OP(), dims.OQ(), dims.OR()

	if !actionOnly {
		pParams := ps.Params()
		for j := 0; j < ps.Size(); j++ {
			handler.Axpy(col[oP+j], pParams[j], solution)
		}
	}
	for j := 0; j < qs.Size(); j++ {
		e := qs.Entry(j)
		handler.Axpy(col[oQ+j], e.Q, solution)
		handler.Axpy(col[oQ+j], e.HQ, residual)
	}
	for j := 0; j < rs.Size(); j++ {
		handler.Axpy(col[oR+j], rs.Params[j], solution)
		handler.Axpy(col[oR+j], rs.Actions[j], residual)
	}

	if eigenResidual {
		ss := handler.Dot(solution, solution)
		if ss == 0 {
			return solution, residual, ErrZeroNorm
		}
		scale := 1 / math.Sqrt(ss)
		handler.Scale(scale, solution)
		handler.Scale(scale, residual)
		handler.Axpy(-eigenvalue, solution, residual)
		if hasAugmentedRHS {
			handler.Axpy(-1, augmentedRHS, residual)
		}
	}
	return solution, residual, nil
}
