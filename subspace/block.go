package subspace

import "gonum.org/v1/gonum/mat"

// Block is a small dense matrix that grows and shrinks one row/column at a
// time as P and Q entries are added and evicted. The subspace dimensions
// involved are always small (bounded by Config.MaxQ plus the P and working
// set sizes), so a [][]float64 backing is simpler to resize in place than a
// gonum mat.Dense would be; blocks are converted to *mat.Dense only at the
// point they are handed to the reduced-problem numerical routines, which is
// where gonum's dense linear algebra actually does the work.
type Block struct {
	rows, cols int
	data       [][]float64
}

// NewBlock returns a zero-filled rows x cols block.
func NewBlock(rows, cols int) *Block {
	b := &Block{rows: rows, cols: cols, data: make([][]float64, rows)}
	for i := range b.data {
		b.data[i] = make([]float64, cols)
	}
	return b
}

func (b *Block) Rows() int { return b.rows }
func (b *Block) Cols() int { return b.cols }

func (b *Block) At(i, j int) float64 { return b.data[i][j] }

func (b *Block) Set(i, j int, v float64) { b.data[i][j] = v }

// Resize grows the block to rows x cols, preserving the existing top-left
// submatrix and zero-filling new entries. Shrinking truncates.
func (b *Block) Resize(rows, cols int) {
	newData := make([][]float64, rows)
	for i := range newData {
		newData[i] = make([]float64, cols)
		if i < b.rows {
			n := cols
			if b.cols < n {
				n = b.cols
			}
			copy(newData[i][:n], b.data[i][:n])
		}
	}
	b.data, b.rows, b.cols = newData, rows, cols
}

// RemoveRowCol deletes row i and column i, shifting later indices down by one.
func (b *Block) RemoveRowCol(i int) {
	b.data = append(b.data[:i], b.data[i+1:]...)
	b.rows--
	for r := range b.data {
		b.data[r] = append(b.data[r][:i], b.data[r][i+1:]...)
	}
	b.cols--
}

// RemoveRow deletes row i only, for non-square blocks such as a reduced
// right-hand side where the column count (number of RHS vectors) is
// unrelated to the row index being evicted.
func (b *Block) RemoveRow(i int) {
	b.data = append(b.data[:i], b.data[i+1:]...)
	b.rows--
}

// ToDense copies the block into a *mat.Dense for use with gonum's SVD,
// Eigen, and QR routines.
func (b *Block) ToDense() *mat.Dense {
	flat := make([]float64, b.rows*b.cols)
	for i := 0; i < b.rows; i++ {
		copy(flat[i*b.cols:(i+1)*b.cols], b.data[i])
	}
	return mat.NewDense(b.rows, b.cols, flat)
}

// SetSlice copies src into the block starting at (rowOff, colOff).
func (b *Block) SetSlice(rowOff, colOff int, src *Block) {
	for i := 0; i < src.rows; i++ {
		for j := 0; j < src.cols; j++ {
			b.data[rowOff+i][colOff+j] = src.data[i][j]
		}
	}
}

// SetSliceDense copies src (a raw rows x cols matrix) into the block
// starting at (rowOff, colOff).
func (b *Block) SetSliceDense(rowOff, colOff, rows, cols int, src *mat.Dense) {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b.data[rowOff+i][colOff+j] = src.At(i, j)
		}
	}
}
