// Package itsolv implements an iterative subspace solver framework for
// linear eigensystems, linear inhomogeneous systems, quasi-Newton
// optimisation, and DIIS/KAIN nonlinear fixed-point acceleration, all built
// on a shared P/Q/R subspace bookkeeping and reduced-matrix-assembly core.
package itsolv

import (
	"math"

	"github.com/curioloop/itsolv/interpolator"
	"github.com/curioloop/itsolv/lbfgs"
	"github.com/curioloop/itsolv/reduced"
	"github.com/curioloop/itsolv/subspace"
	"github.com/curioloop/itsolv/vector"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Mode selects which reduced problem Engine.AddVector solves. Rather than a
// class hierarchy per variant, a single Engine dispatches on this tag inside
// solveReducedProblem: a tagged sum with shared machinery living in the
// engine, not a base class.
type Mode int

const (
	ModeEigensystem Mode = iota
	ModeLinearEquations
	ModeFixedPoint // DIIS or KAIN, selected by NewDIIS's mode via QSpace's resRes metric
)

// Engine is the package's facade: one handle per problem, synchronous, no
// persisted state across process lifetimes.
type Engine[V any] struct {
	handler vector.Handler[V]
	mode    Mode
	cfg     Config
	logger  *Logger

	hermitian  bool
	rhsVectors []V

	ps *subspace.PSpace[V]
	qs *subspace.QSpace[V]

	nRoots      int
	workingSet  []int
	eigenvalues []float64
	errorsArr   []float64
	converged   map[int]bool

	lastD, lastHD []V
	havePending   []bool

	optState optimizeState[V]
}

type optimizeState[V any] struct {
	has          bool
	rBest, vBest V
	fBest        float64
	pendingDir   V
	pendingStep  float64
	minimize     bool

	// pendingForward is set by AddValue when a step has just been accepted
	// into the L-BFGS history: x has been nullified and the backward pass
	// already run, but the forward pass and the next trial point are
	// deferred to EndIterationValue.
	pendingForward bool
	accepted       V
	alpha          []float64
}

// NewEigensystem returns an Engine solving A x = λ x for the nRoots lowest
// roots. dim is informational only — the subspace never materialises a
// dim-length vector itself.
func NewEigensystem[V any](handler vector.Handler[V], dim, nRoots int, threshold float64, hermitian bool, cfg Config) (*Engine[V], error) {
	if nRoots < 1 {
		return nil, newPreconditionError("nRoots must be >= 1")
	}
	cfg.ConvergenceThreshold = threshold
	cfg.Hermitian = hermitian
	e := newEngine(handler, ModeEigensystem, cfg)
	e.hermitian = hermitian
	e.nRoots = nRoots
	e.qs = subspace.NewQSpace[V](handler, false, nil)
	return e, nil
}

// NewLinearEquations returns an Engine solving A x = b for one x per RHS
// vector. The RHS vectors are copied.
func NewLinearEquations[V any](handler vector.Handler[V], rhs []V, augmentedHessian, threshold float64) (*Engine[V], error) {
	if augmentedHessian < 0 {
		return nil, newPreconditionError("augmentedHessian must be 0 or positive")
	}
	cfg := DefaultConfig()
	cfg.ConvergenceThreshold = threshold
	cfg.AugmentedHessian = augmentedHessian
	e := newEngine(handler, ModeLinearEquations, cfg)
	e.rhsVectors = make([]V, len(rhs))
	for i, v := range rhs {
		cp := handler.NewVector()
		handler.Copy(cp, v)
		e.rhsVectors[i] = cp
	}
	e.nRoots = len(rhs)
	e.qs = subspace.NewQSpace[V](handler, false, e.rhsVectors)
	return e, nil
}

// NewDIIS returns an Engine accelerating a nonlinear fixed-point iteration.
// mode selects DIIS (residual-residual H/S split) or KAIN (solution-overlap
// split); DIISDisabled is rejected.
func NewDIIS[V any](handler vector.Handler[V], mode DIISMode, threshold float64) (*Engine[V], error) {
	if mode == DIISDisabled {
		return nil, newPreconditionError("DIIS mode must not be disabled")
	}
	cfg := DefaultConfig()
	cfg.ConvergenceThreshold = threshold
	e := newEngine(handler, ModeFixedPoint, cfg)
	e.nRoots = 1
	resRes := mode == DIISAccelerate
	e.qs = subspace.NewQSpace[V](handler, resRes, nil)
	return e, nil
}

// NewOptimize returns an Engine performing unconstrained quasi-Newton
// minimisation driven by AddValue. Only the "L-BFGS" algorithm is
// implemented; any other name, "null" (steepest descent, no history)
// included, is rejected with a NotImplementedError.
func NewOptimize[V any](handler vector.Handler[V], algorithm string, minimize bool, threshold float64) (*Engine[V], error) {
	if algorithm != "L-BFGS" {
		return nil, newNotImplementedError("optimize algorithm " + algorithm)
	}
	cfg := DefaultConfig()
	cfg.ConvergenceThreshold = threshold
	cfg.Orthogonalise = false
	cfg.ExcludeRFromRedundancyTest = true
	e := newEngine(handler, ModeFixedPoint, cfg) // dispatch unused: AddValue bypasses solveReducedProblem
	e.nRoots = 1
	e.qs = subspace.NewQSpace[V](handler, false, nil)
	e.optState.minimize = minimize
	return e, nil
}

func newEngine[V any](handler vector.Handler[V], mode Mode, cfg Config) *Engine[V] {
	return &Engine[V]{
		handler:   handler,
		mode:      mode,
		cfg:       cfg,
		logger:    defaultLogger(),
		hermitian: cfg.Hermitian,
		ps:        subspace.NewPSpace[V](handler),
		converged: make(map[int]bool),
	}
}

// SetLogger installs a custom logger; nil disables logging.
func (e *Engine[V]) SetLogger(l *Logger) { e.logger = l }

func (e *Engine[V]) initWorkingSet(n int) {
	e.workingSet = make([]int, n)
	for i := range e.workingSet {
		e.workingSet[i] = i
	}
	e.eigenvalues = make([]float64, n)
	e.errorsArr = make([]float64, n)
	e.lastD = make([]V, n)
	e.lastHD = make([]V, n)
	e.havePending = make([]bool, n)
}

// AddVector is the outer entry point for the Eigensystem, LinearEquations,
// and DIIS/KAIN variants. params/actions are
// the caller's current working-set trial vectors and their A-actions; both
// are overwritten in place with the next candidate solution and residual.
// It returns the size of the working set on exit (0 once every root has
// converged).
func (e *Engine[V]) AddVector(params, actions []V) (int, error) {
	if len(params) != len(actions) {
		return 0, newPreconditionError("parameters and action slices differ in length")
	}
	if e.nRoots == 0 {
		e.nRoots = len(params)
	}
	if e.workingSet == nil {
		e.initWorkingSet(e.nRoots)
	}
	if len(params) != len(e.workingSet) {
		return 0, newPreconditionError("parameter slice length does not match the current working set")
	}

	h := e.handler
	if e.cfg.EigenNormalisation {
		for i := range params {
			pp := h.Dot(params[i], params[i])
			if pp > 0 && math.Abs(pp-1) > 1e-12 {
				scale := 1 / math.Sqrt(pp)
				h.Scale(scale, params[i])
				h.Scale(scale, actions[i])
			}
		}
	}

	for i, k := range e.workingSet {
		if e.havePending[k] {
			if _, err := e.qs.Add(params[i], actions[i], e.lastD[k], e.lastHD[k], e.cfg.Orthogonalise); err != nil {
				return 0, newNumericalError(err)
			}
			e.havePending[k] = false
		}
	}

	rs := subspace.NewRSpace(params, actions)

	rebuild := func() (*subspace.Block, *subspace.Block, subspace.Dimensions, error) {
		if err := e.ps.RefreshP(e.qs); err != nil {
			return nil, nil, subspace.Dimensions{}, err
		}
		return subspace.Build(e.ps, e.qs, rs, h)
	}

	condCfg := subspace.ConditionConfig{
		SVDThreshold:     e.cfg.SVDThreshold,
		ResidualResidual: e.qs.ResRes(),
		ExcludeRFromTest: e.cfg.ExcludeRFromRedundancyTest,
		MaxQ:             e.cfg.MaxQ,
		ForcedThreshold:  e.cfg.ForcedSVDThreshold,
		CoefficientFloor: 1e-3,
		EnableQMerge:     e.cfg.EnableQMerge,
		MergeOverlap:     0.999,
	}
	evicted, err := subspace.Condition(e.qs, condCfg, rebuild)
	if err != nil {
		return 0, newNumericalError(err)
	}
	if len(evicted) > 0 && e.logger.enable(LogTrace) {
		e.logger.log("itsolv: conditioning evicted %d Q entries\n", len(evicted))
	}

	S, H, dims, err := rebuild()
	if err != nil {
		return 0, newNumericalError(err)
	}

	C, eigenResidualMode, eigenvalues, err := e.solveReducedProblem(S, H, rs, dims)
	if err != nil {
		return 0, newNumericalError(err)
	}

	for i, k := range e.workingSet {
		if k >= C.Cols() {
			continue
		}
		col := make([]float64, dims.NX())
		for r := 0; r < dims.NX(); r++ {
			col[r] = C.At(r, k)
		}

		var eigenvalue float64
		hasAug := false
		var augVec V
		if eigenResidualMode {
			eigenvalue = eigenvalues[k]
			if e.mode == ModeLinearEquations && e.cfg.AugmentedHessian != 0 {
				hasAug = true
				augVec = e.rhsVectors[k]
			}
		}

		// Two reconstructions from the same interpolation column: the
		// action-only pair (no P contribution) is what gets promoted into
		// Q and stashed as the next call's difference base, since QSpace
		// never stores a P component of its own; the full pair (P
		// included) is the caller-visible solution/residual.
		rawSolution, rawResidual, err := interpolator.Combine[V](h, e.ps, e.qs, rs, dims, col, true, eigenResidualMode, eigenvalue, augVec, hasAug)
		if err != nil {
			return 0, newNumericalError(err)
		}
		solution, residual, err := interpolator.Combine[V](h, e.ps, e.qs, rs, dims, col, false, eigenResidualMode, eigenvalue, augVec, hasAug)
		if err != nil {
			return 0, newNumericalError(err)
		}
		if e.mode == ModeLinearEquations && e.cfg.AugmentedHessian == 0 {
			h.Axpy(-1, e.rhsVectors[k], residual)
			h.Axpy(-1, e.rhsVectors[k], rawResidual)
		}
		if e.mode == ModeEigensystem {
			e.eigenvalues[k] = eigenvalues[k]
		}

		errNorm := math.Sqrt(h.Dot(residual, residual))
		e.errorsArr[k] = errNorm

		h.Copy(params[i], solution)
		h.Copy(actions[i], residual)

		if errNorm < e.cfg.ConvergenceThreshold {
			if !e.converged[k] {
				if _, err := e.qs.AddSolution(rawSolution, rawResidual, k); err != nil {
					return 0, newNumericalError(err)
				}
				e.converged[k] = true
				if e.logger.enable(LogConverge) {
					e.logger.log("itsolv: root %d converged, error=%g\n", k, errNorm)
				}
			}
		} else {
			e.havePending[k] = true
			e.lastD[k], e.lastHD[k] = h.NewVector(), h.NewVector()
			h.Copy(e.lastD[k], rawSolution)
			h.Copy(e.lastHD[k], rawResidual)
		}
	}

	next := e.workingSet[:0]
	for _, k := range e.workingSet {
		if !e.converged[k] {
			next = append(next, k)
		}
	}
	e.workingSet = next
	return len(e.workingSet), nil
}

// solveReducedProblem dispatches on Mode. It returns the interpolation
// matrix C, whether the eigen-residual
// convention applies, and the per-root eigenvalues (nil when not
// applicable).
func (e *Engine[V]) solveReducedProblem(S, H *subspace.Block, rs *subspace.RSpace[V], dims subspace.Dimensions) (*subspace.Block, bool, []float64, error) {
	switch e.mode {
	case ModeEigensystem:
		res, err := reduced.SolveEigensystem(S.ToDense(), H.ToDense(), e.nRoots, e.cfg.SVDThreshold, 1e-8, e.hermitian)
		if err != nil {
			return nil, false, nil, err
		}
		return fromDense(res.C), true, res.Eigenvalues, nil
	case ModeLinearEquations:
		b := subspace.BuildRHS(e.qs, rs, e.handler, e.rhsVectors, dims)
		res, err := reduced.SolveLinearEquations(S.ToDense(), H.ToDense(), b.ToDense(), e.cfg.AugmentedHessian, e.cfg.DIISUpdateShiftEpsilon)
		if err != nil {
			return nil, false, nil, err
		}
		return fromDense(res.C), e.cfg.AugmentedHessian != 0, res.Eigenvalues, nil
	default: // ModeFixedPoint
		c, err := reduced.SolveDIIS(H.ToDense(), e.cfg.SVDThreshold)
		if err != nil {
			return nil, false, nil, err
		}
		b := subspace.NewBlock(len(c), 1)
		for i, v := range c {
			b.Set(i, 0, v)
		}
		return b, false, nil, nil
	}
}

func fromDense(d *mat.Dense) *subspace.Block {
	rows, cols := d.Dims()
	b := subspace.NewBlock(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b.Set(i, j, d.At(i, j))
		}
	}
	return b
}

// AddP appends sparse P vectors together with their caller-supplied PP
// action block. It may only be called before the first call to AddVector
// that promotes a root to convergence.
func (e *Engine[V]) AddP(newP []subspace.PVector, ppAction []float64, params, actions []V) error {
	if len(e.converged) > 0 {
		return newPreconditionError("AddP called after a root has converged")
	}
	e.ps.Add(newP, ppAction, params, actions)
	return nil
}

// Solution writes the current solution and residual for each requested
// root index (may be called after convergence). This reads back the last
// values AddVector wrote into its own params/actions arguments, so the
// caller must retain those buffers across iterations.
func (e *Engine[V]) Solution(rootIndices []int, lastParams, lastActions []V, outSolution, outResidual []V) error {
	if len(rootIndices) != len(outSolution) || len(rootIndices) != len(outResidual) {
		return newPreconditionError("rootIndices/outSolution/outResidual length mismatch")
	}
	for i, k := range rootIndices {
		if k < 0 || k >= len(lastParams) {
			return newPreconditionError("root index out of range")
		}
		e.handler.Copy(outSolution[i], lastParams[k])
		e.handler.Copy(outResidual[i], lastActions[k])
	}
	return nil
}

// SuggestP delegates to the handler's significance-based axis selection
// over the given solution/residual pair.
func (e *Engine[V]) SuggestP(solution, residual V, n int, tau float64) ([]int, []float64) {
	return e.handler.Select(solution, residual, n, tau)
}

// EndIteration reports whether the maximum error is below the configured
// threshold, i.e. whether every root has converged. For each converged root
// k with k < len(solution), it copies that root's promoted Q entry
// (normalised to unit norm) and its action into solution[k]/residual[k];
// slots of roots that have not converged are left untouched.
func (e *Engine[V]) EndIteration(solution, residual []V) (bool, error) {
	maxErr := 0.0
	if len(e.errorsArr) > 0 {
		maxErr = floats.Max(e.errorsArr)
	}
	for k := range e.errorsArr {
		if k < len(solution) && e.converged[k] {
			if qi := e.qs.EntryOwnedBy(k); qi >= 0 {
				e.handler.Copy(solution[k], e.qs.Entry(qi).Q)
				e.handler.Copy(residual[k], e.qs.Entry(qi).HQ)
			}
		}
	}
	return maxErr < e.cfg.ConvergenceThreshold, nil
}

// Eigenvalues returns the current eigenvalue estimates (Eigensystem only).
func (e *Engine[V]) Eigenvalues() []float64 { return e.eigenvalues }

// Errors returns the current per-root residual norms.
func (e *Engine[V]) Errors() []float64 { return e.errorsArr }

// WorkingSet returns the indices of roots not yet converged.
func (e *Engine[V]) WorkingSet() []int { return e.workingSet }

// AddValue implements the Optimize variant's add-value state machine. It
// returns 1 while still probing the current search direction (the initial
// call, or a rejected trial) — x is overwritten in place with the next
// trial point, ready for another f,g := evaluate(x) round. It returns 0
// right after a step is accepted into the L-BFGS history: the two-loop
// recursion's backward pass runs here, but x is nullified (scal(0)) rather
// than carrying the next trial, so the caller must follow a 0 status with
// EndIterationValue(x, g) before evaluating x again — that call runs the
// forward pass and assembles the real next point. This tracks an explicit
// search direction/step rather than reconstructing them from a borrowed
// RSpace slot each call.
func (e *Engine[V]) AddValue(x V, f float64, g V) (int, error) {
	h := e.handler
	sign := 1.0
	if e.optState.minimize {
		sign = -1.0
	}

	if !e.optState.has {
		e.optState.rBest = h.NewVector()
		h.Copy(e.optState.rBest, x)
		e.optState.vBest = h.NewVector()
		h.Copy(e.optState.vBest, g)
		e.optState.fBest = f
		e.optState.pendingDir = h.NewVector()
		h.Copy(e.optState.pendingDir, g)
		h.Scale(sign, e.optState.pendingDir)
		normalizeDir(h, e.optState.pendingDir)
		e.optState.pendingStep = 1
		e.optState.has = true

		newX := h.NewVector()
		h.Copy(newX, e.optState.rBest)
		h.Axpy(e.optState.pendingStep, e.optState.pendingDir, newX)
		h.Copy(x, newX)
		return 1, nil
	}

	// q_last (pendingDir) is always kept unit-normalised, so the
	// directional derivative is simply step·⟨v, q_last⟩.
	step := e.optState.pendingStep
	g0 := step * h.Dot(e.optState.vBest, e.optState.pendingDir)
	g1 := step * h.Dot(g, e.optState.pendingDir)

	lsCfg := lbfgs.Config{
		Wolfe1:               e.cfg.Wolfe1,
		Wolfe2:               e.cfg.Wolfe2,
		StrongWolfe:          e.cfg.StrongWolfe,
		ConvergenceThreshold: e.cfg.ConvergenceThreshold,
		Tolerance:            e.cfg.LinesearchTolerance,
		GrowFactor:           e.cfg.LinesearchGrowFactor,
	}
	res := lbfgs.Evaluate(lsCfg, e.optState.fBest, g0, f, g1)

	if !res.Accept {
		newX := h.NewVector()
		h.Copy(newX, e.optState.rBest)
		h.Axpy(res.NextStep*step, e.optState.pendingDir, newX)
		h.Copy(x, newX)
		e.optState.pendingStep = res.NextStep * step
		return 1, nil
	}

	accepted := h.NewVector()
	h.Copy(accepted, x)

	if _, err := e.qs.Add(x, g, e.optState.rBest, e.optState.vBest, false); err != nil {
		return 0, newNumericalError(err)
	}
	if sign*f > sign*e.optState.fBest {
		h.Copy(e.optState.rBest, x)
		h.Copy(e.optState.vBest, g)
		e.optState.fBest = f
	}

	nQ := e.qs.Size()
	hqr := make([]float64, nQ)
	for a := 0; a < nQ; a++ {
		hqr[a] = h.Dot(e.qs.Entry(a).Q, g)
	}
	alpha, _ := lbfgs.BackwardPass(nQ, hqr, func(a, b int) float64 { return e.qs.Hqq.At(a, b) })

	e.optState.accepted = accepted
	e.optState.alpha = alpha
	e.optState.pendingForward = true

	// nullify_solution_before_update: the accepted point is already
	// captured above and in QSpace's history, so the caller's x is cleared
	// until EndIterationValue assembles the real next trial.
	h.FillZero(x)
	return 0, nil
}

// EndIterationValue completes the Optimize variant's per-iteration state
// machine. When AddValue's preceding call accepted a step (and nullified
// x), this removes the backward pass's α_a·Aq_a terms from g — the
// gradient at that accepted point — runs the two-loop recursion's forward
// pass over the result, builds the corrected L-BFGS search
// direction, and writes the first trial of the new direction into x. When
// the preceding call instead rejected a trial, x already holds a valid
// probe point and there is nothing to finalize; this only reports
// convergence. g is left unmodified either way.
func (e *Engine[V]) EndIterationValue(x, g V) (bool, error) {
	h := e.handler
	if e.optState.pendingForward {
		sign := 1.0
		if e.optState.minimize {
			sign = -1.0
		}
		nQ := e.qs.Size()

		dir := h.NewVector()
		h.Copy(dir, g)
		for a := 0; a < nQ; a++ {
			h.Axpy(-e.optState.alpha[a], e.qs.Entry(a).HQ, dir)
		}
		aqDotSolution := make([]float64, nQ)
		for a := 0; a < nQ; a++ {
			aqDotSolution[a] = h.Dot(e.qs.Entry(a).HQ, dir)
		}
		gamma := lbfgs.ForwardPass(nQ, e.optState.alpha, aqDotSolution, func(a, b int) float64 { return e.qs.Hqq.At(a, b) })
		for a := 0; a < nQ; a++ {
			h.Axpy(gamma[a], e.qs.Entry(a).Q, dir)
		}
		h.Scale(sign, dir)

		normalizeDir(h, dir)
		e.optState.pendingDir = dir
		e.optState.pendingStep = 1

		newX := h.NewVector()
		h.Copy(newX, e.optState.accepted)
		h.Axpy(e.optState.pendingStep, dir, newX)
		h.Copy(x, newX)

		e.optState.pendingForward = false
	}
	return math.Sqrt(h.Dot(g, g)) < e.cfg.ConvergenceThreshold, nil
}

// normalizeDir rescales d to unit norm in place. A zero-norm direction is
// left untouched; the next Evaluate call will see a zero directional
// derivative and reject the step, which is the correct degenerate behaviour
// rather than a divide-by-zero.
func normalizeDir[V any](h vector.Handler[V], d V) {
	norm := math.Sqrt(h.Dot(d, d))
	if norm > 0 {
		h.Scale(1/norm, d)
	}
}
