package subspace

import (
	"math"
	"testing"

	"github.com/curioloop/itsolv/vector"
)

func TestQSpaceAddNormalisesAndComputesRHS(t *testing.T) {
	h := vector.NewDenseHandler(2)
	rhs := [][]float64{{1, 0}, {0, 1}}
	qs := NewQSpace[[]float64](h, false, rhs)

	rNew := []float64{0, 0}
	actionNew := []float64{0, 0}
	rPrev := []float64{3, 4}
	actionPrev := []float64{1, 1}

	idx, err := qs.Add(rNew, actionNew, rPrev, actionPrev, false)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("Add returned index %d, want 0", idx)
	}

	e := qs.Entry(0)
	if math.Abs(e.Scale-0.2) > 1e-12 {
		t.Fatalf("Scale = %v, want 0.2", e.Scale)
	}
	if math.Abs(e.Q[0]-0.6) > 1e-12 || math.Abs(e.Q[1]-0.8) > 1e-12 {
		t.Fatalf("Q = %v, want [0.6 0.8]", e.Q)
	}
	if math.Abs(e.HQ[0]-0.2) > 1e-12 || math.Abs(e.HQ[1]-0.2) > 1e-12 {
		t.Fatalf("HQ = %v, want [0.2 0.2]", e.HQ)
	}
	if e.Kind != KindDifference || e.Owner != -1 {
		t.Fatalf("Kind/Owner = %v/%v, want KindDifference/-1", e.Kind, e.Owner)
	}

	if math.Abs(qs.Sqq.At(0, 0)-1) > 1e-12 {
		t.Fatalf("Sqq(0,0) = %v, want 1 (unit normalised)", qs.Sqq.At(0, 0))
	}
	if math.Abs(qs.RHS.At(0, 0)-0.6) > 1e-12 || math.Abs(qs.RHS.At(0, 1)-0.8) > 1e-12 {
		t.Fatalf("RHS row = [%v %v], want [0.6 0.8]", qs.RHS.At(0, 0), qs.RHS.At(0, 1))
	}
}

func TestQSpaceAddZeroNormError(t *testing.T) {
	h := vector.NewDenseHandler(2)
	qs := NewQSpace[[]float64](h, false, nil)
	v := []float64{1, 1}
	_, err := qs.Add(v, v, v, v, false)
	if err != ErrZeroNorm {
		t.Fatalf("Add with equal vectors returned %v, want ErrZeroNorm", err)
	}
}

func TestQSpaceOrthogonalise(t *testing.T) {
	h := vector.NewDenseHandler(2)
	qs := NewQSpace[[]float64](h, false, nil)
	rNew := []float64{1, 0}
	actionNew := []float64{0, 0}
	rPrev := []float64{1, 5}
	actionPrev := []float64{0, 0}

	idx, err := qs.Add(rNew, actionNew, rPrev, actionPrev, true)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	e := qs.Entry(idx)
	// d = rPrev - rNew = [0,5]; projected off rNew=[1,0] leaves it unchanged
	// since dot([1,0],[0,5]) == 0, then normalised to [0,1].
	if math.Abs(e.Q[0]) > 1e-12 || math.Abs(e.Q[1]-1) > 1e-12 {
		t.Fatalf("orthogonalised Q = %v, want [0 1]", e.Q)
	}
}

func TestQSpaceRemoveShiftsIndices(t *testing.T) {
	h := vector.NewDenseHandler(2)
	qs := NewQSpace[[]float64](h, false, nil)
	zero := []float64{0, 0}
	if _, err := qs.Add([]float64{1, 0}, zero, zero, zero, false); err != nil {
		t.Fatalf("Add 0: %v", err)
	}
	if _, err := qs.AddSolution([]float64{0, 1}, zero, 7); err != nil {
		t.Fatalf("AddSolution: %v", err)
	}
	if qs.Size() != 2 {
		t.Fatalf("Size = %d, want 2", qs.Size())
	}

	qs.Remove(0)
	if qs.Size() != 1 {
		t.Fatalf("Size after Remove = %d, want 1", qs.Size())
	}
	if qs.EntryOwnedBy(7) != 0 {
		t.Fatalf("EntryOwnedBy(7) = %d, want 0 after shift", qs.EntryOwnedBy(7))
	}
	if qs.Sqq.Rows() != 1 || qs.Hqq.Rows() != 1 {
		t.Fatalf("Sqq/Hqq not shrunk: %dx%d", qs.Sqq.Rows(), qs.Sqq.Cols())
	}
}

func TestQSpaceEntryOwnedByMissing(t *testing.T) {
	h := vector.NewDenseHandler(2)
	qs := NewQSpace[[]float64](h, false, nil)
	if got := qs.EntryOwnedBy(3); got != -1 {
		t.Fatalf("EntryOwnedBy on empty QSpace = %d, want -1", got)
	}
}

func TestQSpaceModificationCandidatesExcludesSolutions(t *testing.T) {
	h := vector.NewDenseHandler(2)
	qs := NewQSpace[[]float64](h, false, nil)
	zero := []float64{0, 0}
	qs.Add([]float64{1, 0}, zero, zero, zero, false)
	qs.AddSolution([]float64{0, 1}, zero, 0)
	qs.Add([]float64{1, 1}, zero, zero, zero, false)

	cands := qs.ModificationCandidates()
	want := []int{0, 2}
	if len(cands) != len(want) || cands[0] != want[0] || cands[1] != want[1] {
		t.Fatalf("ModificationCandidates = %v, want %v", cands, want)
	}
}

func TestQSpaceMergeRecomputesRHS(t *testing.T) {
	h := vector.NewDenseHandler(2)
	rhs := [][]float64{{1, 0}}
	qs := NewQSpace[[]float64](h, false, rhs)
	zero := []float64{0, 0}
	qs.Add([]float64{1, 0}, zero, zero, zero, false)
	qs.Add([]float64{0, 1}, zero, zero, zero, false)

	qs.Merge(0, 1)
	if qs.Size() != 1 {
		t.Fatalf("Size after Merge = %d, want 1", qs.Size())
	}
	e := qs.Entry(0)
	want := h.Dot(e.Q, rhs[0])
	if math.Abs(qs.RHS.At(0, 0)-want) > 1e-12 {
		t.Fatalf("RHS after Merge = %v, want %v", qs.RHS.At(0, 0), want)
	}
}
