package reconciler

import "fmt"

// FailureKind classifies engine failures per the error policy: capability
// gaps are fatal, tool failures are retried only through the in-pass recovery
// chain, invariant violations trigger re-derivation, ambiguous syncs are
// logged and dropped.
type FailureKind string

const (
	FailToolUnavailable FailureKind = "TOOL_UNAVAILABLE"
	FailToolCall        FailureKind = "TOOL_CALL_FAILED"
	FailStateInvariant  FailureKind = "STATE_INVARIANT_VIOLATION"
	FailAmbiguousSync   FailureKind = "AMBIGUOUS_SYNC"
)

// Failure is a typed engine failure.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s (%s): %v", f.Kind, f.Op, f.Err)
	}
	return fmt.Sprintf("%s (%s)", f.Kind, f.Op)
}

// Unwrap exposes the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Is supports errors.Is against another Failure of the same kind.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

func failf(kind FailureKind, op string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Err: err}
}

// FailureKindOf extracts the FailureKind from an error, or "" when it is not
// an engine failure.
func FailureKindOf(err error) FailureKind {
	if f, ok := err.(*Failure); ok {
		return f.Kind
	}
	return ""
}
