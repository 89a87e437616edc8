// Package vector defines the external contract through which the subspace
// engine touches large vectors, and a reference in-memory implementation
// used by this module's own tests.
//
// The engine never allocates or inspects the contents of a V itself; every
// large-vector operation funnels through a Handler so that a caller can
// back V with distributed, out-of-core, or GPU-resident storage without the
// engine knowing the difference.
package vector

// Handler is the elementary operation set the subspace engine needs on the
// caller's vector type V: dot, axpy, scale, copy, fill-zero, and select.
// Implementations may realise these in parallel internally; from the
// engine's point of view every call is synchronous and every dot-product
// matrix assembled within one outer iteration must see consistent values.
//
// V is typically a slice or a handle to off-heap/distributed storage; it is
// passed by value because the interesting state (the data backing it) is
// expected to have reference semantics already.
type Handler[V any] interface {
	// Dot computes the Hermitian inner product <a,b>. Dot(a,a) must be
	// real and non-negative.
	Dot(a, b V) float64
	// Axpy performs b <- b + sigma*a. No aliasing is required between a and b.
	Axpy(sigma float64, a, b V)
	// Scale performs a <- sigma*a. When sigma is zero the prior contents of
	// a are treated as undefined and replaced by zero.
	Scale(sigma float64, a V)
	// Copy makes dst take the value of src. Sizes must already match.
	Copy(dst, src V)
	// FillZero sets a <- 0.
	FillZero(a V)
	// Select picks up to n axes of the underlying full space along which
	// the product of |x| and |r| exceeds tau, ordered by significance.
	// Used only by Engine.SuggestP.
	Select(x, r V, n int, tau float64) (indices []int, values []float64)
	// NewVector allocates a fresh zero vector compatible with the problem
	// dimension. The engine uses this for storage it owns: Q-space entries,
	// copies of right-hand sides, interpolated solutions/residuals, and
	// line-search points; R vectors are always supplied by the caller.
	NewVector() V
}
