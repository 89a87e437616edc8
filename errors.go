package itsolv

import "fmt"

// PreconditionError covers invalid constructor arguments, parameter/action
// size mismatches, or calling AddP after a root has converged.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("itsolv: precondition failed: %s", e.Reason)
}

func newPreconditionError(reason string) error {
	return &PreconditionError{Reason: reason}
}

// NumericalError wraps a zero-norm, NaN-coefficient, or complex-eigenvector
// failure surfaced from the subspace/reduced/interpolator packages.
type NumericalError struct {
	Cause error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("itsolv: numerical breakdown: %v", e.Cause)
}

func (e *NumericalError) Unwrap() error { return e.Cause }

func newNumericalError(cause error) error {
	return &NumericalError{Cause: cause}
}

// NotImplementedError signals a request the engine does not implement,
// e.g. an unsupported optimisation algorithm name.
type NotImplementedError struct {
	Reason string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("itsolv: not implemented: %s", e.Reason)
}

func newNotImplementedError(reason string) error {
	return &NotImplementedError{Reason: reason}
}
