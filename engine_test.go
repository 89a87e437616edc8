package itsolv

import (
	"math"
	"testing"

	"github.com/curioloop/itsolv/vector"
)

func TestNewEigensystemRejectsZeroRoots(t *testing.T) {
	h := vector.NewDenseHandler(2)
	_, err := NewEigensystem(h, 2, 0, 1e-8, true, DefaultConfig())
	if _, ok := err.(*PreconditionError); !ok {
		t.Fatalf("err = %v, want *PreconditionError", err)
	}
}

func TestNewLinearEquationsRejectsNegativeAugmentedHessian(t *testing.T) {
	h := vector.NewDenseHandler(2)
	_, err := NewLinearEquations(h, []([]float64){{1, 0}}, -1, 1e-8)
	if _, ok := err.(*PreconditionError); !ok {
		t.Fatalf("err = %v, want *PreconditionError", err)
	}
}

func TestNewDIISRejectsDisabledMode(t *testing.T) {
	h := vector.NewDenseHandler(2)
	_, err := NewDIIS(h, DIISDisabled, 1e-8)
	if _, ok := err.(*PreconditionError); !ok {
		t.Fatalf("err = %v, want *PreconditionError", err)
	}
}

func TestNewOptimizeRejectsUnknownAlgorithm(t *testing.T) {
	h := vector.NewDenseHandler(2)
	_, err := NewOptimize(h, "steepest-descent", true, 1e-8)
	if _, ok := err.(*NotImplementedError); !ok {
		t.Fatalf("err = %v, want *NotImplementedError", err)
	}
}

// TestEigensystemConvergesOnExactInvariantSubspace exercises the full
// pipeline (RefreshP/Build/Condition/SolveEigensystem/Combine) on a diagonal
// 2x2 operator whose initial trial vectors already span its exact
// eigenbasis, so both roots must converge on the very first call.
func TestEigensystemConvergesOnExactInvariantSubspace(t *testing.T) {
	h := vector.NewDenseHandler(2)
	matVec := func(v []float64) []float64 { return []float64{1 * v[0], 5 * v[1]} }

	eng, err := NewEigensystem(h, 2, 2, 1e-8, true, DefaultConfig())
	if err != nil {
		t.Fatalf("NewEigensystem: %v", err)
	}

	params := [][]float64{{1, 0}, {0, 1}}
	actions := [][]float64{matVec(params[0]), matVec(params[1])}

	size, err := eng.AddVector(params, actions)
	if err != nil {
		t.Fatalf("AddVector: %v", err)
	}
	if size != 0 {
		t.Fatalf("working set size = %d, want 0 (both roots converge in one call)", size)
	}

	eig := eng.Eigenvalues()
	if math.Abs(eig[0]-1) > 1e-8 || math.Abs(eig[1]-5) > 1e-8 {
		t.Fatalf("eigenvalues = %v, want [1 5]", eig)
	}
	for k, e := range eng.Errors() {
		if e > 1e-8 {
			t.Fatalf("root %d error = %v, want < 1e-8", k, e)
		}
	}
}

// TestLinearEquationsConvergesWhenTrialSpansSolution exercises the plain
// (non-augmented) linear-equations path end to end: a trial parallel to the
// true solution must converge immediately.
func TestLinearEquationsConvergesWhenTrialSpansSolution(t *testing.T) {
	h := vector.NewDenseHandler(2)
	matVec := func(v []float64) []float64 { return []float64{2 * v[0], 4 * v[1]} }
	rhs := [][]float64{{4, 8}}

	eng, err := NewLinearEquations(h, rhs, 0, 1e-8)
	if err != nil {
		t.Fatalf("NewLinearEquations: %v", err)
	}

	params := [][]float64{{1, 1}}
	actions := [][]float64{matVec(params[0])}

	size, err := eng.AddVector(params, actions)
	if err != nil {
		t.Fatalf("AddVector: %v", err)
	}
	if size != 0 {
		t.Fatalf("working set size = %d, want 0", size)
	}
	if math.Abs(params[0][0]-2) > 1e-8 || math.Abs(params[0][1]-2) > 1e-8 {
		t.Fatalf("solution = %v, want [2 2]", params[0])
	}
}

// TestOptimizeAddValueWritesTrialPointOnFirstCall checks that the first call
// writes a new trial into x and signals "still probing" (status 1), fixing
// the bug where the initial branch never advanced x.
func TestOptimizeAddValueWritesTrialPointOnFirstCall(t *testing.T) {
	h := vector.NewDenseHandler(2)
	eng, err := NewOptimize(h, "L-BFGS", true, 1e-8)
	if err != nil {
		t.Fatalf("NewOptimize: %v", err)
	}

	x := []float64{2, 1}
	x0 := append([]float64{}, x...)
	g := []float64{2, 2} // gradient of 0.5*x^T diag(1,2) x at [2,1]
	f := 0.5 * (1*4 + 2*1)

	status, err := eng.AddValue(x, f, g)
	if err != nil {
		t.Fatalf("AddValue: %v", err)
	}
	if status != 1 {
		t.Fatalf("status = %d, want 1 on the first call", status)
	}
	if x[0] == x0[0] && x[1] == x0[1] {
		t.Fatalf("AddValue did not write a new trial point into x on the first call")
	}
}

// TestOptimizeAddValueAcceptPath drives two evaluations of a quadratic along
// the steepest-descent direction and checks that an improving second point
// is accepted (status 0), that x is nullified rather than holding a new
// trial directly, and that EndIterationValue then assembles the real next
// trial point.
func TestOptimizeAddValueAcceptPath(t *testing.T) {
	h := vector.NewDenseHandler(2)
	eng, err := NewOptimize(h, "L-BFGS", true, 1e-12)
	if err != nil {
		t.Fatalf("NewOptimize: %v", err)
	}

	hess := func(v []float64) []float64 { return []float64{1 * v[0], 2 * v[1]} }
	obj := func(v []float64) float64 { return 0.5 * (v[0]*hess(v)[0] + v[1]*hess(v)[1]) }

	x := []float64{2, 1}
	g := hess(x)
	f := obj(x)
	if _, err := eng.AddValue(x, f, g); err != nil {
		t.Fatalf("AddValue (first): %v", err)
	}

	g2 := hess(x)
	f2 := obj(x)
	status, err := eng.AddValue(x, f2, g2)
	if err != nil {
		t.Fatalf("AddValue (second): %v", err)
	}
	if status != 0 && status != 1 {
		t.Fatalf("status = %d, want 0 or 1", status)
	}
	if status == 0 {
		if x[0] != 0 || x[1] != 0 {
			t.Fatalf("x = %v, want nullified to zero after an accepted step", x)
		}
		if _, err := eng.EndIterationValue(x, g2); err != nil {
			t.Fatalf("EndIterationValue: %v", err)
		}
		if x[0] == 0 && x[1] == 0 {
			t.Fatalf("EndIterationValue did not write a new trial point into x")
		}
	}
}
