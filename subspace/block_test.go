package subspace

import "testing"

func TestBlockResizePreservesTopLeft(t *testing.T) {
	b := NewBlock(2, 2)
	b.Set(0, 0, 1)
	b.Set(0, 1, 2)
	b.Set(1, 0, 3)
	b.Set(1, 1, 4)

	b.Resize(3, 3)
	if b.At(0, 0) != 1 || b.At(0, 1) != 2 || b.At(1, 0) != 3 || b.At(1, 1) != 4 {
		t.Fatalf("Resize(grow) did not preserve top-left submatrix")
	}
	if b.At(2, 2) != 0 {
		t.Fatalf("Resize(grow) did not zero-fill new entries")
	}

	b.Resize(1, 1)
	if b.At(0, 0) != 1 {
		t.Fatalf("Resize(shrink) corrupted surviving entry")
	}
}

func TestBlockRemoveRowCol(t *testing.T) {
	b := NewBlock(3, 3)
	n := 0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			n++
			b.Set(i, j, float64(n))
		}
	}
	// [[1 2 3] [4 5 6] [7 8 9]], remove row/col 1 -> [[1 3] [7 9]]
	b.RemoveRowCol(1)
	if b.Rows() != 2 || b.Cols() != 2 {
		t.Fatalf("dims after RemoveRowCol = %dx%d, want 2x2", b.Rows(), b.Cols())
	}
	want := [2][2]float64{{1, 3}, {7, 9}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if b.At(i, j) != want[i][j] {
				t.Fatalf("At(%d,%d) = %v, want %v", i, j, b.At(i, j), want[i][j])
			}
		}
	}
}

func TestBlockRemoveRowOnly(t *testing.T) {
	b := NewBlock(3, 2)
	b.Set(0, 0, 1)
	b.Set(0, 1, 2)
	b.Set(1, 0, 3)
	b.Set(1, 1, 4)
	b.Set(2, 0, 5)
	b.Set(2, 1, 6)

	b.RemoveRow(1)
	if b.Rows() != 2 || b.Cols() != 2 {
		t.Fatalf("dims after RemoveRow = %dx%d, want 2x2", b.Rows(), b.Cols())
	}
	if b.At(0, 0) != 1 || b.At(0, 1) != 2 || b.At(1, 0) != 5 || b.At(1, 1) != 6 {
		t.Fatalf("RemoveRow did not shift remaining rows correctly")
	}
}

func TestBlockToDense(t *testing.T) {
	b := NewBlock(2, 2)
	b.Set(0, 0, 1)
	b.Set(0, 1, 2)
	b.Set(1, 0, 3)
	b.Set(1, 1, 4)
	d := b.ToDense()
	rows, cols := d.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("ToDense dims = %dx%d, want 2x2", rows, cols)
	}
	if d.At(1, 0) != 3 {
		t.Fatalf("ToDense At(1,0) = %v, want 3", d.At(1, 0))
	}
}

func TestBlockSetSlice(t *testing.T) {
	dst := NewBlock(4, 4)
	src := NewBlock(2, 2)
	src.Set(0, 0, 9)
	src.Set(1, 1, 8)
	dst.SetSlice(1, 1, src)
	if dst.At(1, 1) != 9 || dst.At(2, 2) != 8 {
		t.Fatalf("SetSlice did not place block at the requested offset")
	}
	if dst.At(0, 0) != 0 {
		t.Fatalf("SetSlice touched entries outside the destination region")
	}
}
