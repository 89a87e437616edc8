package lbfgs

// BackwardPass is the backward half of the L-BFGS two-loop recursion, run
// over QSpace's (q, Hq) history instead of a circular buffer:
// α_a = (H_qr[a] - Σ_{b>a} α_b·qAction(a,b)) / qAction(a,a), stored negated
// into the interpolation column for Q entry a. hqr is the cross term
// between each Q entry and the current R column (XSpace's H_qr block);
// qAction(a,b) is QSpace's cached Hqq.At(a,b).
func BackwardPass(nQ int, hqr []float64, qAction func(a, b int) float64) (alpha, col []float64) {
	alpha = make([]float64, nQ)
	col = make([]float64, nQ)
	for a := nQ - 1; a >= 0; a-- {
		sum := 0.0
		for b := a + 1; b < nQ; b++ {
			sum += alpha[b] * qAction(a, b)
		}
		diag := qAction(a, a)
		if diag == 0 {
			continue
		}
		alpha[a] = (hqr[a] - sum) / diag
		col[a] = -alpha[a]
	}
	return alpha, col
}

// ForwardPass is the forward half, run in end_iteration once the candidate
// solution has been assembled: γ_a = α_a - ⟨Aq_a, solution⟩/qAction(a,a).
// aqDotSolution[a] is ⟨Aq_a, solution⟩, computed by the caller since it
// needs the just-built solution vector.
func ForwardPass(nQ int, alpha, aqDotSolution []float64, qAction func(a, b int) float64) []float64 {
	gamma := make([]float64, nQ)
	for a := 0; a < nQ; a++ {
		diag := qAction(a, a)
		if diag == 0 {
			gamma[a] = alpha[a]
			continue
		}
		gamma[a] = alpha[a] - aqDotSolution[a]/diag
	}
	return gamma
}
