package itsolv

// Config gathers the solver's tunables as plain, strongly-typed fields
// with documented defaults, rather than string-keyed options.
type Config struct {
	// SVDThreshold is the conditioning loop's singularity threshold
	// (τ_sing) and the rank cutoff used by the eigensystem/DIIS solvers.
	SVDThreshold float64
	// ForcedSVDThreshold is used once nQ exceeds MaxQ, forcing eviction
	// (default 1e6).
	ForcedSVDThreshold float64
	// MaxQ bounds the Q history before the conditioning loop is forced.
	MaxQ int
	// ExcludeRFromRedundancyTest restricts the conditioning SVD to the P+Q
	// leading block, skipping the working-set R columns.
	ExcludeRFromRedundancyTest bool
	// Hermitian selects the Gram-Schmidt/phase-fix eigenvector treatment.
	Hermitian bool
	// ConvergenceThreshold is the residual-norm threshold a working-set
	// root must fall below to be considered converged.
	ConvergenceThreshold float64
	// EigenNormalisation rescales a root's (param, action) pair in place
	// when ⟨p,p⟩ drifts far from 1.
	EigenNormalisation bool
	// Orthogonalise controls whether new Q differences are orthogonalised
	// against the current R before normalisation. The Optimize variant
	// turns this off so the stored direction is the raw L-BFGS step.
	Orthogonalise bool
	// EnableQMerge turns on the supplemented Q-merge pathway (see
	// DESIGN.md); off by default.
	EnableQMerge bool

	// AugmentedHessian is the linear-equations variant's damping
	// coefficient; 0 disables the augmented-Hessian reformulation.
	AugmentedHessian float64
	// DIISUpdateShiftEpsilon is the ε in the augmented-Hessian variant's
	// per-root shift -(1+ε)·λ, reported in reduced.LinearResult.Shifts. The
	// engine does not read those shifts; no trial vector is shifted by them.
	DIISUpdateShiftEpsilon float64

	// Wolfe1, Wolfe2 are the Optimize variant's sufficient-decrease and
	// curvature parameters (c1, c2).
	Wolfe1, Wolfe2 float64
	// StrongWolfe selects the strong vs. weak curvature test.
	StrongWolfe bool
	// LinesearchTolerance, LinesearchGrowFactor bound the cubic-fit step
	// proposal.
	LinesearchTolerance  float64
	LinesearchGrowFactor float64
}

// DefaultConfig returns the solver's documented defaults.
func DefaultConfig() Config {
	return Config{
		SVDThreshold:               1e-6,
		ForcedSVDThreshold:         1e6,
		MaxQ:                       1 << 30,
		ExcludeRFromRedundancyTest: false,
		Hermitian:                  true,
		ConvergenceThreshold:       1e-8,
		EigenNormalisation:         true,
		Orthogonalise:              true,
		EnableQMerge:               false,
		AugmentedHessian:           0,
		DIISUpdateShiftEpsilon:     1e-10,
		Wolfe1:                     1e-4,
		Wolfe2:                     0.9,
		StrongWolfe:                false,
		LinesearchTolerance:        0.1,
		LinesearchGrowFactor:       2.0,
	}
}

// DIISMode selects the nonlinear fixed-point acceleration variant.
type DIISMode int

const (
	DIISDisabled DIISMode = iota
	DIISAccelerate
	KAINAccelerate
)
