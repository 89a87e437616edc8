package reduced

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularReduced is returned when the reduced linear system cannot be
// solved to the requested tolerance.
var ErrSingularReduced = errors.New("itsolv: reduced linear system is singular")

// LinearResult holds the per-RHS solution coefficients and, for the
// augmented-Hessian variant, the shift to apply to each root's next step.
type LinearResult struct {
	C           *mat.Dense // nX x nRhs
	Shifts      []float64  // len nRhs, zero unless augmentedHessian != 0
	Eigenvalues []float64  // the raw λ per RHS (augmented mode only; zero otherwise)
}

// SolveLinearEquations solves the linear-equations reduced problem. With
// augmentedHessian == 0 it solves H c = b directly via QR (gonum's mat.QR
// has no column pivoting; this is the closest available equivalent to a
// pivoted Householder QR). Otherwise, for
// each RHS column it forms the (nX+1)-dimensional augmented-Hessian
// generalized eigenproblem and takes the eigenpair with smallest real
// eigenvalue, following the S̄⁻¹H̄ + mat.Eigen reduction documented in
// DESIGN.md rather than a direct generalized-eigensolver binding.
func SolveLinearEquations(S, H, b *mat.Dense, augmentedHessian, shiftEpsilon float64) (*LinearResult, error) {
	nX, _ := S.Dims()
	_, nRhs := b.Dims()

	if augmentedHessian == 0 {
		var qr mat.QR
		qr.Factorize(H)
		C := mat.NewDense(nX, nRhs, nil)
		if err := qr.SolveTo(C, false, b); err != nil {
			return nil, ErrSingularReduced
		}
		return &LinearResult{C: C, Shifts: make([]float64, nRhs), Eigenvalues: make([]float64, nRhs)}, nil
	}

	C := mat.NewDense(nX, nRhs, nil)
	shifts := make([]float64, nRhs)
	eigenvalues := make([]float64, nRhs)
	for k := 0; k < nRhs; k++ {
		n1 := nX + 1
		Hext := mat.NewDense(n1, n1, nil)
		Sext := mat.NewDense(n1, n1, nil)
		for i := 0; i < nX; i++ {
			for j := 0; j < nX; j++ {
				Hext.Set(i, j, H.At(i, j))
				Sext.Set(i, j, S.At(i, j))
			}
			Hext.Set(i, nX, -augmentedHessian*b.At(i, k))
			Hext.Set(nX, i, -augmentedHessian*b.At(i, k))
		}
		Sext.Set(nX, nX, 1)

		var SextInv mat.Dense
		if err := SextInv.Inverse(Sext); err != nil {
			return nil, ErrSingularReduced
		}
		var M mat.Dense
		M.Mul(&SextInv, Hext)

		var eig mat.Eigen
		if !eig.Factorize(&M, mat.EigenRight) {
			return nil, ErrEigenFailed
		}
		vals := eig.Values(nil)
		var vecs mat.CDense
		eig.VectorsTo(&vecs)

		best := -1
		for i, v := range vals {
			if best < 0 || real(v) < real(vals[best]) {
				best = i
			}
		}
		lastEntry := real(vecs.At(nX, best))
		if lastEntry == 0 {
			return nil, ErrSingularReduced
		}
		for i := 0; i < nX; i++ {
			C.Set(i, k, real(vecs.At(i, best))/(augmentedHessian*lastEntry))
		}
		shifts[k] = -(1 + shiftEpsilon) * real(vals[best])
		eigenvalues[k] = real(vals[best])
	}
	return &LinearResult{C: C, Shifts: shifts, Eigenvalues: eigenvalues}, nil
}

// residualNorm reports ‖H c - b‖ for the plain (non-augmented) variant,
// used by tests to check the solve's residual.
func residualNorm(H, b, C *mat.Dense) float64 {
	var r mat.Dense
	r.Mul(H, C)
	r.Sub(&r, b)
	rows, cols := r.Dims()
	squares := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := r.At(i, j)
			squares = append(squares, v*v)
		}
	}
	return math.Sqrt(floats.Sum(squares))
}
