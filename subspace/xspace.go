package subspace

import "github.com/curioloop/itsolv/vector"

// Build assembles the reduced overlap S and action H blocks of dimension
// nX = nP+nQ+nR: P-P from PSpace, P-Q/Q-P from PSpace's cached P-Q blocks,
// Q-Q from QSpace, and P-R/Q-R/R-P/R-Q/R-R from fresh dot products against
// the current RSpace. The handler must implement SparseDotter when nP > 0.
func Build[V any](ps *PSpace[V], qs *QSpace[V], rs *RSpace[V], handler vector.Handler[V]) (S, H *Block, dims Dimensions, err error) {
	nP, nQ, nR := ps.Size(), qs.Size(), rs.Size()
	dims = Dimensions{NP: nP, NQ: nQ, NR: nR}
	nX := dims.NX()
	oP, oQ, oR := dims.OP(), dims.OQ(), dims.OR()

	S = NewBlock(nX, nX)
	H = NewBlock(nX, nX)

	if nP > 0 {
		S.SetSlice(oP, oP, ps.S)
		H.SetSlice(oP, oP, ps.H)
	}
	if nQ > 0 {
		S.SetSlice(oQ, oQ, qs.Sqq)
		H.SetSlice(oQ, oQ, qs.Hqq)
	}
	if nP > 0 && nQ > 0 {
		S.SetSlice(oP, oQ, ps.SPQ)
		H.SetSlice(oP, oQ, ps.HPQ)
		for i := 0; i < nP; i++ {
			for j := 0; j < nQ; j++ {
				S.Set(oQ+j, oP+i, ps.SPQ.At(i, j))
				H.Set(oQ+j, oP+i, ps.HPQ.At(i, j)) // Hermitian-Hamiltonian mirror
			}
		}
	}

	var dotter SparseDotter[V]
	if nP > 0 {
		var ok bool
		dotter, ok = handler.(SparseDotter[V])
		if !ok {
			return nil, nil, dims, errNoSparseDotter
		}
	}

	rParams, rActions := rs.Params, rs.Actions
	for i := 0; i < nR; i++ {
		for j := 0; j < nR; j++ {
			S.Set(oR+i, oR+j, handler.Dot(rParams[i], rParams[j]))
			H.Set(oR+i, oR+j, handler.Dot(rParams[i], rActions[j]))
		}
		for j := 0; j < nQ; j++ {
			qe := qs.Entry(j)
			sqr := handler.Dot(qe.Q, rParams[i])
			S.Set(oQ+j, oR+i, sqr)
			S.Set(oR+i, oQ+j, sqr)
			if qs.resRes {
				H.Set(oQ+j, oR+i, handler.Dot(qe.HQ, rActions[i]))
			} else {
				H.Set(oQ+j, oR+i, handler.Dot(qe.Q, rActions[i]))
			}
			H.Set(oR+i, oQ+j, handler.Dot(rParams[i], qe.HQ))
		}
		for k := 0; k < nP; k++ {
			pv := ps.pvecs[k]
			spr := dotter.DotSparse(pv.Indices, pv.Coeffs, rParams[i])
			hpr := dotter.DotSparse(pv.Indices, pv.Coeffs, rActions[i])
			S.Set(oP+k, oR+i, spr)
			S.Set(oR+i, oP+k, spr)
			H.Set(oP+k, oR+i, hpr)
			H.Set(oR+i, oP+k, hpr) // same Hermitian-Hamiltonian mirror as P-Q
		}
	}
	return S, H, dims, nil
}

// BuildRHS assembles the reduced right-hand side b (nX x nRhs) for the
// linear-equations variant: b[i,k] = <x_i, rhs_k>. P rows are left zero —
// combining a non-empty P-space with the linear-equations variant is not
// supported.
func BuildRHS[V any](qs *QSpace[V], rs *RSpace[V], handler vector.Handler[V], rhsVectors []V, dims Dimensions) *Block {
	nRhs := len(rhsVectors)
	b := NewBlock(dims.NX(), nRhs)
	oQ, oR := dims.OQ(), dims.OR()
	for j := 0; j < qs.Size(); j++ {
		for k := 0; k < nRhs; k++ {
			b.Set(oQ+j, k, qs.RHS.At(j, k))
		}
	}
	for i := 0; i < rs.Size(); i++ {
		for k := 0; k < nRhs; k++ {
			b.Set(oR+i, k, handler.Dot(rs.Params[i], rhsVectors[k]))
		}
	}
	return b
}
