package vector

import (
	"math"
	"sort"
)

// DenseHandler is a reference Handler implementation over []float64, built
// from unit-stride BLAS-style kernels (ddot/daxpy/dscal/dcopy). It exists
// so this module's own tests and example scenarios have something
// runnable; it is not a production large-vector backend.
type DenseHandler struct {
	Dim int
}

// NewDenseHandler returns a Handler over []float64 vectors of length dim.
func NewDenseHandler(dim int) *DenseHandler {
	return &DenseHandler{Dim: dim}
}

func (h *DenseHandler) Dot(a, b []float64) float64 {
	n := uint(len(a))
	if n > uint(len(b)) {
		panic("bound check error")
	}
	var dot float64
	m := n % 5
	for i := uint(0); i < m; i++ {
		dot += a[i] * b[i]
	}
	for i := m; i < n; i += 5 {
		x := a[i : i+5 : i+5]
		y := b[i : i+5 : i+5]
		dot += x[0]*y[0] + x[1]*y[1] + x[2]*y[2] + x[3]*y[3] + x[4]*y[4]
	}
	return dot
}

func (h *DenseHandler) Axpy(sigma float64, a, b []float64) {
	n := uint(len(a))
	if sigma == 0 || n == 0 {
		return
	}
	if n > uint(len(b)) {
		panic("bound check error")
	}
	m := n % 4
	for i := uint(0); i < m; i++ {
		b[i] += sigma * a[i]
	}
	for i := m; i < n; i += 4 {
		x := a[i : i+4 : i+4]
		y := b[i : i+4 : i+4]
		y[0] += sigma * x[0]
		y[1] += sigma * x[1]
		y[2] += sigma * x[2]
		y[3] += sigma * x[3]
	}
}

func (h *DenseHandler) Scale(sigma float64, a []float64) {
	if sigma == 0 {
		h.FillZero(a)
		return
	}
	for i := range a {
		a[i] *= sigma
	}
}

func (h *DenseHandler) Copy(dst, src []float64) {
	copy(dst, src)
}

func (h *DenseHandler) FillZero(a []float64) {
	for i := range a {
		a[i] = 0
	}
}

// Select picks up to n axes where |x[i]|*|r[i]| exceeds tau, ordered by
// descending significance.
func (h *DenseHandler) Select(x, r []float64, n int, tau float64) ([]int, []float64) {
	type cand struct {
		idx  int
		sig  float64
		diag float64
	}
	cands := make([]cand, 0, len(x))
	for i := range x {
		sig := math.Abs(x[i]) * math.Abs(r[i])
		if sig > tau {
			cands = append(cands, cand{i, sig, x[i]})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].sig > cands[j].sig })
	if len(cands) > n {
		cands = cands[:n]
	}
	indices := make([]int, len(cands))
	values := make([]float64, len(cands))
	for i, c := range cands {
		indices[i] = c.idx
		values[i] = c.diag
	}
	return indices, values
}

func (h *DenseHandler) NewVector() []float64 {
	return make([]float64, h.Dim)
}

// DotSparse implements subspace.SparseDotter so DenseHandler can back
// PSpace: a PVector addresses the same component indices as a dense V.
func (h *DenseHandler) DotSparse(indices []int, coeffs []float64, v []float64) float64 {
	var s float64
	for k, idx := range indices {
		s += coeffs[k] * v[idx]
	}
	return s
}
