package reduced

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNaNCoefficient signals a NaN DIIS/KAIN coefficient.
var ErrNaNCoefficient = errors.New("itsolv: NaN DIIS coefficient")

// SolveDIIS implements the DIIS/KAIN fit: with nDim = nX-1, solves
// B c = -b_last where B is the leading nDim x nDim block of H and b_last is
// the last column's first nDim rows, via an SVD-truncated pseudo-inverse
// (threshold svdThreshold). The returned vector has length nX: rows
// 0..nDim-1 are the fit coefficients and the last row is 1, matching the
// interpolation-matrix convention XSpace uses for every variant. KAIN
// differs from DIIS only in whether H was built under the residual-residual
// or solution-overlap metric (QSpace's resRes flag) — this function is
// identical for both.
func SolveDIIS(H *mat.Dense, svdThreshold float64) ([]float64, error) {
	nX, _ := H.Dims()
	nDim := nX - 1
	if nDim <= 0 {
		return nil, errors.New("itsolv: DIIS requires at least one history entry")
	}

	B := mat.NewDense(nDim, nDim, nil)
	for i := 0; i < nDim; i++ {
		for j := 0; j < nDim; j++ {
			B.Set(i, j, H.At(i, j))
		}
	}
	negB := mat.NewVecDense(nDim, nil)
	for i := 0; i < nDim; i++ {
		negB.SetVec(i, -H.At(i, nDim))
	}

	var svd mat.SVD
	if !svd.Factorize(B, mat.SVDThin) {
		return nil, ErrSVDFailed
	}
	vals := svd.Values(nil)
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)

	c := make([]float64, nDim)
	for k, sigma := range vals {
		if sigma <= svdThreshold {
			continue
		}
		var uk mat.VecDense
		uk.CloneFromVec(U.ColView(k))
		proj := mat.Dot(&uk, negB) / sigma
		for i := 0; i < nDim; i++ {
			c[i] += proj * V.At(i, k)
		}
	}

	out := make([]float64, nX)
	for i, v := range c {
		if math.IsNaN(v) {
			return nil, ErrNaNCoefficient
		}
		out[i] = v
	}
	out[nDim] = 1
	return out, nil
}
