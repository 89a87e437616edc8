package subspace

import (
	"errors"
	"math"

	"github.com/curioloop/itsolv/vector"
)

// EntryKind distinguishes ordinary Q history (a difference between two
// successive R iterates) from a promoted converged solution, which the
// conditioning loop must never evict.
type EntryKind int

const (
	KindDifference EntryKind = iota
	KindSolution
)

// QEntry is the triple (parameter q, action hq, scale-factor s). Scale is
// 1/‖raw difference‖, so the pre-normalisation step length is recoverable
// as 1/Scale — this is exactly what the Optimize variant's line search
// needs: step = 1/scale_factor of the last Q entry.
type QEntry[V any] struct {
	Q     V
	HQ    V
	Scale float64
	Kind  EntryKind
	// Owner identifies which root a KindSolution entry belongs to (-1 for
	// ordinary KindDifference history). Carried along by slice splicing in
	// Remove, so it survives conditioning evictions that shift later
	// entries down, unlike a cached index would.
	Owner int
}

// ErrZeroNorm is a numerical-breakdown error: a unit vector was required
// but the source difference vector had zero norm.
var ErrZeroNorm = errors.New("itsolv: zero norm where a unit vector is required")

// QSpace maintains the ordered Q history together with its QQ overlap (S)
// and action (H) blocks. P interactions live in PSpace, refreshed from
// here rather than cached by QSpace itself: QSpace never stores a pointer
// back into PSpace, avoiding a cyclic reference between the two.
type QSpace[V any] struct {
	handler    vector.Handler[V]
	resRes     bool // residual-residual metric for H, vs. the default solution-overlap metric
	entries    []QEntry[V]
	Sqq        *Block
	Hqq        *Block
	RHS        *Block // nQ x nRhs, only populated for the linear-equations variant
	rhsVectors []V
}

// NewQSpace returns an empty QSpace. resRes selects the H-block metric:
// false uses <q_i, H q_j> (solution overlap, used by the eigensystem and
// KAIN variants); true uses <Hq_i, Hq_j> (residual overlap, used by DIIS).
// rhsVectors is the (copied, caller-owned-for-the-run) set of right-hand
// sides for the linear-equations variant; nil/empty for every other variant.
func NewQSpace[V any](handler vector.Handler[V], resRes bool, rhsVectors []V) *QSpace[V] {
	return &QSpace[V]{
		handler:    handler,
		resRes:     resRes,
		Sqq:        NewBlock(0, 0),
		Hqq:        NewBlock(0, 0),
		RHS:        NewBlock(0, len(rhsVectors)),
		rhsVectors: rhsVectors,
	}
}

func (q *QSpace[V]) Size() int { return len(q.entries) }

// ResRes reports which H-block metric this QSpace was constructed with.
func (q *QSpace[V]) ResRes() bool { return q.resRes }

func (q *QSpace[V]) Entry(i int) QEntry[V] { return q.entries[i] }

func (q *QSpace[V]) Params() []V {
	out := make([]V, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Q
	}
	return out
}

func (q *QSpace[V]) Actions() []V {
	out := make([]V, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.HQ
	}
	return out
}

func (q *QSpace[V]) ScaleFactor(i int) float64 { return q.entries[i].Scale }

// ModificationCandidates returns indices of entries the conditioning loop
// may evict: ordinary difference history, never a promoted solution.
func (q *QSpace[V]) ModificationCandidates() []int {
	var out []int
	for i, e := range q.entries {
		if e.Kind == KindDifference {
			out = append(out, i)
		}
	}
	return out
}

func (q *QSpace[V]) hMetric(a, ha, b, hb V) float64 {
	if q.resRes {
		return q.handler.Dot(ha, hb)
	}
	return q.handler.Dot(a, hb)
}

// Add enqueues the difference (rPrev - rNew) and its action, scaled to unit
// norm, and records the scale factor. When orthogonalise is set, the
// difference is first made orthogonal to rNew before normalisation;
// otherwise the bare difference is stored. The Optimize variant disables
// orthogonalisation so the L-BFGS direction is the raw step.
func (q *QSpace[V]) Add(rNew, actionNew, rPrev, actionPrev V, orthogonalise bool) (int, error) {
	h := q.handler
	d := h.NewVector()
	h.Copy(d, rPrev)
	h.Axpy(-1, rNew, d)
	hd := h.NewVector()
	h.Copy(hd, actionPrev)
	h.Axpy(-1, actionNew, hd)

	if orthogonalise {
		rr := h.Dot(rNew, rNew)
		if rr > 0 {
			proj := h.Dot(rNew, d) / rr
			h.Axpy(-proj, rNew, d)
		}
	}

	norm := math.Sqrt(h.Dot(d, d))
	if norm == 0 {
		return -1, ErrZeroNorm
	}
	s := 1 / norm
	h.Scale(s, d)
	h.Scale(s, hd)

	return q.append(QEntry[V]{Q: d, HQ: hd, Scale: s, Kind: KindDifference, Owner: -1}), nil
}

// AddSolution promotes a converged root into Q: stores rNew directly,
// normalised, marked so the conditioning loop never evicts it. owner
// identifies which root this entry belongs to, so EntryOwnedBy can find it
// again after later conditioning evictions shift indices.
func (q *QSpace[V]) AddSolution(rNew, actionNew V, owner int) (int, error) {
	h := q.handler
	norm := math.Sqrt(h.Dot(rNew, rNew))
	if norm == 0 {
		return -1, ErrZeroNorm
	}
	d := h.NewVector()
	h.Copy(d, rNew)
	hd := h.NewVector()
	h.Copy(hd, actionNew)
	s := 1 / norm
	h.Scale(s, d)
	h.Scale(s, hd)
	return q.append(QEntry[V]{Q: d, HQ: hd, Scale: s, Kind: KindSolution, Owner: owner}), nil
}

// EntryOwnedBy returns the index of the KindSolution entry owned by root,
// or -1 if none has been promoted yet.
func (q *QSpace[V]) EntryOwnedBy(root int) int {
	for i, e := range q.entries {
		if e.Kind == KindSolution && e.Owner == root {
			return i
		}
	}
	return -1
}

func (q *QSpace[V]) append(e QEntry[V]) int {
	n := len(q.entries)
	q.Sqq.Resize(n+1, n+1)
	q.Hqq.Resize(n+1, n+1)
	if len(q.rhsVectors) > 0 {
		q.RHS.Resize(n+1, len(q.rhsVectors))
		for k, rv := range q.rhsVectors {
			q.RHS.Set(n, k, q.handler.Dot(e.Q, rv))
		}
	}
	for j, other := range q.entries {
		q.Sqq.Set(n, j, q.handler.Dot(e.Q, other.Q))
		q.Sqq.Set(j, n, q.handler.Dot(other.Q, e.Q))
		q.Hqq.Set(n, j, q.hMetric(e.Q, e.HQ, other.Q, other.HQ))
		q.Hqq.Set(j, n, q.hMetric(other.Q, other.HQ, e.Q, e.HQ))
	}
	q.Sqq.Set(n, n, q.handler.Dot(e.Q, e.Q))
	q.Hqq.Set(n, n, q.hMetric(e.Q, e.HQ, e.Q, e.HQ))
	q.entries = append(q.entries, e)
	return n
}

// Remove drops entry i and the corresponding row/column of every cached
// block, shifting indices of later entries down by one.
func (q *QSpace[V]) Remove(i int) {
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	q.Sqq.RemoveRowCol(i)
	q.Hqq.RemoveRowCol(i)
	if len(q.rhsVectors) > 0 {
		q.RHS.RemoveRow(i)
	}
}

// Merge combines entries i and j into a single Q vector (disabled by
// default — see DESIGN.md). The combined vector is the normalised sum
// q_i + q_j; i is replaced in place and j is removed.
func (q *QSpace[V]) Merge(i, j int) {
	if i == j {
		return
	}
	h := q.handler
	ei, ej := q.entries[i], q.entries[j]
	h.Axpy(1, ej.Q, ei.Q)
	h.Axpy(1, ej.HQ, ei.HQ)
	norm := math.Sqrt(h.Dot(ei.Q, ei.Q))
	if norm > 0 {
		h.Scale(1/norm, ei.Q)
		h.Scale(1/norm, ei.HQ)
	}
	q.entries[i] = ei
	q.Remove(j)
	// Recompute row/col i against the surviving entries; cheaper than a
	// full rebuild since only one row changed.
	for k, other := range q.entries {
		if k == i {
			continue
		}
		q.Sqq.Set(i, k, h.Dot(ei.Q, other.Q))
		q.Sqq.Set(k, i, h.Dot(other.Q, ei.Q))
		q.Hqq.Set(i, k, q.hMetric(ei.Q, ei.HQ, other.Q, other.HQ))
		q.Hqq.Set(k, i, q.hMetric(other.Q, other.HQ, ei.Q, ei.HQ))
	}
	q.Sqq.Set(i, i, h.Dot(ei.Q, ei.Q))
	q.Hqq.Set(i, i, q.hMetric(ei.Q, ei.HQ, ei.Q, ei.HQ))
	for k, rv := range q.rhsVectors {
		q.RHS.Set(i, k, h.Dot(ei.Q, rv))
	}
}
