package subspace

import (
	"errors"

	"github.com/curioloop/itsolv/vector"
)

// errNoSparseDotter is returned by RefreshP when P vectors are present but
// the handler does not implement SparseDotter.
var errNoSparseDotter = errors.New("itsolv: handler does not implement SparseDotter, required for non-empty P-space")

// PVector is a sparse axis of the full space: a set of (index, coefficient)
// pairs with unique indices.
type PVector struct {
	Indices []int
	Coeffs  []float64
}

// overlap computes the exact sparse dot product of two PVectors.
func overlap(a, b PVector) float64 {
	coeff := make(map[int]float64, len(b.Indices))
	for i, idx := range b.Indices {
		coeff[idx] = b.Coeffs[i]
	}
	var s float64
	for i, idx := range a.Indices {
		if c, ok := coeff[idx]; ok {
			s += a.Coeffs[i] * c
		}
	}
	return s
}

// PSpace stores the ordered list of caller-supplied sparse P vectors and
// the cached PP block of S and H.
type PSpace[V any] struct {
	handler vector.Handler[V]
	pvecs   []PVector
	params  []V
	actions []V
	S       *Block // PP overlap, recomputed exactly from sparse coefficients
	H       *Block // PP action block, copied verbatim from caller input
	SPQ     *Block // P-Q overlap, refreshed whenever Q changes
	HPQ     *Block // P-Q action block (<p, H q>); H_QP is its transpose, per
	// the Hermitian-Hamiltonian assumption: only <p, Hq> is ever computed
	// directly, since <q, Hp> would need the caller to apply A to a P
	// vector, which is out of scope.
	started bool
}

// NewPSpace returns an empty PSpace.
func NewPSpace[V any](handler vector.Handler[V]) *PSpace[V] {
	return &PSpace[V]{
		handler: handler,
		S:       NewBlock(0, 0),
		H:       NewBlock(0, 0),
		SPQ:     NewBlock(0, 0),
		HPQ:     NewBlock(0, 0),
	}
}

// RefreshP recomputes the P-Q overlap and action blocks against qspace's
// current entries. It takes qspace as a non-owning handle rather than
// storing a reference to it, avoiding a cyclic reference between the two.
func (p *PSpace[V]) RefreshP(qspace *QSpace[V]) error {
	dotter, ok := p.handler.(SparseDotter[V])
	nQ := qspace.Size()
	nP := len(p.pvecs)
	if !ok {
		if nP > 0 && nQ > 0 {
			return errNoSparseDotter
		}
		return nil
	}
	p.SPQ.Resize(nP, nQ)
	p.HPQ.Resize(nP, nQ)
	for i, pv := range p.pvecs {
		for j := 0; j < nQ; j++ {
			e := qspace.Entry(j)
			p.SPQ.Set(i, j, dotter.DotSparse(pv.Indices, pv.Coeffs, e.Q))
			p.HPQ.Set(i, j, dotter.DotSparse(pv.Indices, pv.Coeffs, e.HQ))
		}
	}
	return nil
}

func (p *PSpace[V]) Size() int { return len(p.pvecs) }

func (p *PSpace[V]) Params() []V  { return p.params }
func (p *PSpace[V]) Actions() []V { return p.actions }
func (p *PSpace[V]) Vectors() []PVector {
	return p.pvecs
}

// Add appends new PVectors together with the caller-supplied PP action
// values (row-major, newPP-sized matrix over the *new* P vectors only) and
// their corresponding params/actions in the full space. PP overlap is
// recomputed exactly from the sparse coefficients, never taken from the
// caller. There is no ClearP operation; Erase removes a single entry.
func (p *PSpace[V]) Add(newP []PVector, ppAction []float64, params, actions []V) {
	n0 := len(p.pvecs)
	n1 := n0 + len(newP)
	p.S.Resize(n1, n1)
	p.H.Resize(n1, n1)
	for i, pi := range newP {
		for j, pj := range newP {
			p.S.Set(n0+i, n0+j, overlap(pi, pj))
			p.H.Set(n0+i, n0+j, ppAction[i*len(newP)+j])
		}
		for j := 0; j < n0; j++ {
			s := overlap(pi, p.pvecs[j])
			p.S.Set(n0+i, j, s)
			p.S.Set(j, n0+i, s)
		}
	}
	p.pvecs = append(p.pvecs, newP...)
	p.params = append(p.params, params...)
	p.actions = append(p.actions, actions...)
	p.started = true
}

// Started reports whether Add has ever been called.
func (p *PSpace[V]) Started() bool { return p.started }

// Erase removes PVector i and its row/column from the cached PP blocks.
func (p *PSpace[V]) Erase(i int) {
	p.pvecs = append(p.pvecs[:i], p.pvecs[i+1:]...)
	p.params = append(p.params[:i], p.params[i+1:]...)
	p.actions = append(p.actions[:i], p.actions[i+1:]...)
	p.S.RemoveRowCol(i)
	p.H.RemoveRowCol(i)
	if p.SPQ.Rows() > i {
		p.SPQ.Resize(p.SPQ.Rows()-1, p.SPQ.Cols())
	}
	if p.HPQ.Rows() > i {
		p.HPQ.Resize(p.HPQ.Rows()-1, p.HPQ.Cols())
	}
}
