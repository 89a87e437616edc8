package interpolator

import (
	"math"
	"testing"

	"github.com/curioloop/itsolv/subspace"
	"github.com/curioloop/itsolv/vector"
)

func TestCombinePlain(t *testing.T) {
	h := vector.NewDenseHandler(2)
	ps := subspace.NewPSpace[[]float64](h)
	qs := subspace.NewQSpace[[]float64](h, false, nil)
	zero := []float64{0, 0}
	qs.Add(zero, zero, []float64{1, 0}, []float64{2, 0}, false)

	rs := subspace.NewRSpace([]([]float64){{0, 1}}, []([]float64){{0, 3}})
	dims := subspace.Dimensions{NP: 0, NQ: 1, NR: 1}

	col := []float64{0.5, 2} // oQ=0 -> 0.5, oR=1 -> 2
	var zeroV []float64
	sol, res, err := Combine[[]float64](h, ps, qs, rs, dims, col, false, false, 0, zeroV, false)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	// solution = 0.5*q.Q + 2*rParam = 0.5*[1,0] + 2*[0,1] = [0.5, 2]
	if math.Abs(sol[0]-0.5) > 1e-12 || math.Abs(sol[1]-2) > 1e-12 {
		t.Fatalf("solution = %v, want [0.5 2]", sol)
	}
	// residual = 0.5*q.HQ + 2*rAction = 0.5*[2,0] + 2*[0,3] = [1, 6]
	if math.Abs(res[0]-1) > 1e-12 || math.Abs(res[1]-6) > 1e-12 {
		t.Fatalf("residual = %v, want [1 6]", res)
	}
}

func TestCombineEigenResidualRenormalises(t *testing.T) {
	h := vector.NewDenseHandler(2)
	ps := subspace.NewPSpace[[]float64](h)
	qs := subspace.NewQSpace[[]float64](h, false, nil)
	rs := subspace.NewRSpace([]([]float64){{3, 4}}, []([]float64){{1, 1}})
	dims := subspace.Dimensions{NP: 0, NQ: 0, NR: 1}

	col := []float64{1}
	var zeroV []float64
	sol, res, err := Combine[[]float64](h, ps, qs, rs, dims, col, false, true, 2.0, zeroV, false)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	// solution before renorm = [3,4], norm 5 -> scaled to [0.6, 0.8]
	if math.Abs(sol[0]-0.6) > 1e-8 || math.Abs(sol[1]-0.8) > 1e-8 {
		t.Fatalf("renormalised solution = %v, want [0.6 0.8]", sol)
	}
	// residual before renorm = [1,1], scaled by 1/5 -> [0.2,0.2], then
	// subtract eigenvalue*solution = 2*[0.6,0.8] = [1.2,1.6]
	wantRes := []float64{0.2 - 1.2, 0.2 - 1.6}
	if math.Abs(res[0]-wantRes[0]) > 1e-8 || math.Abs(res[1]-wantRes[1]) > 1e-8 {
		t.Fatalf("residual = %v, want %v", res, wantRes)
	}
}

func TestCombineZeroNormError(t *testing.T) {
	h := vector.NewDenseHandler(2)
	ps := subspace.NewPSpace[[]float64](h)
	qs := subspace.NewQSpace[[]float64](h, false, nil)
	rs := subspace.NewRSpace([]([]float64){{0, 0}}, []([]float64){{0, 0}})
	dims := subspace.Dimensions{NP: 0, NQ: 0, NR: 1}

	col := []float64{1}
	var zeroV []float64
	_, _, err := Combine[[]float64](h, ps, qs, rs, dims, col, false, true, 1, zeroV, false)
	if err != ErrZeroNorm {
		t.Fatalf("err = %v, want ErrZeroNorm", err)
	}
}
