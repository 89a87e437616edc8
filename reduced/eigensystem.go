// Package reduced solves the small dense reduced problems XSpace assembles:
// the Davidson-style generalized eigenproblem, linear equations (plain or
// augmented-Hessian), and the DIIS/KAIN least-squares fit.
package reduced

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrComplexEigenvector signals that an eigenvector required to be real
	// carries a non-negligible imaginary part.
	ErrComplexEigenvector = errors.New("itsolv: eigenvector has non-negligible imaginary part")
	ErrSVDFailed          = errors.New("itsolv: SVD factorization failed")
	ErrEigenFailed        = errors.New("itsolv: eigendecomposition failed")
)

// EigensystemResult is the outcome of SolveEigensystem: ascending eigenvalues
// and the nX x nRoots interpolation coefficient matrix.
type EigensystemResult struct {
	Eigenvalues []float64
	C           *mat.Dense
}

// SolveEigensystem forms H̄ = Σ^-1/2 Uᵀ H V Σ^-1/2 from the SVD UΣVᵀ of S
// truncated to svdThreshold rank, eigendecomposes H̄, and maps eigenvectors
// back via V Σ^-1/2. Eigenpairs are sorted by ascending real part and
// truncated to the first min(nRoots, nX) before any further validation —
// this is what lets a non-Hermitian problem with a higher complex-conjugate
// pair succeed without ever validating the excluded complex eigenvector.
func SolveEigensystem(S, H *mat.Dense, nRoots int, svdThreshold, imagTolerance float64, hermitian bool) (*EigensystemResult, error) {
	nX, _ := S.Dims()

	var svd mat.SVD
	if !svd.Factorize(S, mat.SVDThin) {
		return nil, ErrSVDFailed
	}
	vals := svd.Values(nil) // descending
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)

	rank := 0
	for _, v := range vals {
		if v > svdThreshold {
			rank++
		}
	}
	if rank == 0 {
		return nil, ErrSVDFailed
	}

	Ur := U.Slice(0, nX, 0, rank).(*mat.Dense)
	Vr := V.Slice(0, nX, 0, rank).(*mat.Dense)
	invSqrt := make([]float64, rank)
	for i := 0; i < rank; i++ {
		invSqrt[i] = 1 / math.Sqrt(vals[i])
	}

	var UrTH, core mat.Dense
	UrTH.Mul(Ur.T(), H)
	core.Mul(&UrTH, Vr)
	Hbar := mat.NewDense(rank, rank, nil)
	for i := 0; i < rank; i++ {
		for j := 0; j < rank; j++ {
			Hbar.Set(i, j, invSqrt[i]*core.At(i, j)*invSqrt[j])
		}
	}

	var eig mat.Eigen
	if !eig.Factorize(Hbar, mat.EigenRight) {
		return nil, ErrEigenFailed
	}
	rawVals := eig.Values(nil)
	var rawVecs mat.CDense
	eig.VectorsTo(&rawVecs)

	type pair struct {
		val complex128
		vec []complex128
	}
	pairs := make([]pair, rank)
	for k := 0; k < rank; k++ {
		vec := make([]complex128, nX)
		for i := 0; i < nX; i++ {
			var s complex128
			for j := 0; j < rank; j++ {
				s += complex(Vr.At(i, j)*invSqrt[j], 0) * rawVecs.At(j, k)
			}
			vec[i] = s
		}
		pairs[k] = pair{val: rawVals[k], vec: vec}
	}
	sort.Slice(pairs, func(i, j int) bool { return real(pairs[i].val) < real(pairs[j].val) })

	nTake := nRoots
	if nTake > nX {
		nTake = nX
	}
	if nTake > len(pairs) {
		nTake = len(pairs)
	}
	pairs = pairs[:nTake]

	eigenvalues := make([]float64, nTake)
	realVecs := make([][]float64, nTake)
	for k, p := range pairs {
		eigenvalues[k] = real(p.val)
		foldZero := math.Abs(real(p.val)) < 1e-12 && math.Abs(imag(p.val)) < 1e-12
		rv, err := extractReal(p.vec, foldZero, imagTolerance)
		if err != nil {
			return nil, err
		}
		realVecs[k] = rv
	}

	if hermitian {
		for pass := 0; pass < 3; pass++ {
			orthonormalizeS(realVecs, S)
		}
		for _, v := range realVecs {
			fixPhase(v)
		}
	}

	C := mat.NewDense(nX, nTake, nil)
	for k, v := range realVecs {
		for i := 0; i < nX; i++ {
			C.Set(i, k, v[i])
		}
	}
	return &EigensystemResult{Eigenvalues: eigenvalues, C: C}, nil
}

func extractReal(vec []complex128, foldZero bool, imagTolerance float64) ([]float64, error) {
	out := make([]float64, len(vec))
	if foldZero {
		for i, c := range vec {
			out[i] = real(c) + imag(c)
		}
		return out, nil
	}
	maxImag := 0.0
	for _, c := range vec {
		if a := math.Abs(imag(c)); a > maxImag {
			maxImag = a
		}
	}
	if maxImag > imagTolerance {
		return nil, ErrComplexEigenvector
	}
	for i, c := range vec {
		out[i] = real(c)
	}
	return out, nil
}

func sMetric(a, b []float64, S *mat.Dense) float64 {
	n := len(a)
	var s float64
	for i := 0; i < n; i++ {
		var si float64
		for j := 0; j < n; j++ {
			si += S.At(i, j) * b[j]
		}
		s += a[i] * si
	}
	return s
}

func orthonormalizeS(vecs [][]float64, S *mat.Dense) {
	for i := range vecs {
		for j := 0; j < i; j++ {
			sjj := sMetric(vecs[j], vecs[j], S)
			if sjj == 0 {
				continue
			}
			proj := sMetric(vecs[i], vecs[j], S) / sjj
			for k := range vecs[i] {
				vecs[i][k] -= proj * vecs[j][k]
			}
		}
		norm := math.Sqrt(sMetric(vecs[i], vecs[i], S))
		if norm > 0 {
			for k := range vecs[i] {
				vecs[i][k] /= norm
			}
		}
	}
}

func fixPhase(v []float64) {
	maxIdx, maxAbs := 0, 0.0
	for i, x := range v {
		if a := math.Abs(x); a > maxAbs {
			maxAbs = a
			maxIdx = i
		}
	}
	if v[maxIdx] < 0 {
		for i := range v {
			v[i] = -v[i]
		}
	}
}
