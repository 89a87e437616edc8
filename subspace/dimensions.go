package subspace

// Dimensions tracks the invariant nX = nP + nQ + nR and the block offsets
// oP, oQ, oR that every reduced-matrix access must respect.
type Dimensions struct {
	NP, NQ, NR int
}

// NX is the total subspace dimension.
func (d Dimensions) NX() int { return d.NP + d.NQ + d.NR }

// OP is the offset of the P block (always 0).
func (d Dimensions) OP() int { return 0 }

// OQ is the offset of the Q block.
func (d Dimensions) OQ() int { return d.NP }

// OR is the offset of the R block.
func (d Dimensions) OR() int { return d.NP + d.NQ }
