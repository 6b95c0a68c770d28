// Package herr carries the core's error taxonomy (§7): a small set of
// fault kinds that unwind as Go errors, and outcome values for the
// recoverable conditions that validation workflows return from pure
// functions instead of propagating as errors.
package herr

import "fmt"

// FaultKind distinguishes the handful of conditions that are allowed
// to unwind a call stack. Everything else — missing dependencies,
// transient network failures, structural validation failures — is
// represented as a value, never an error.
type FaultKind string

const (
	// StorageError: a transaction failed. The containing workflow
	// iteration aborts and is re-triggered; writes are all-or-nothing
	// so this can never leave a database half-written.
	StorageError FaultKind = "StorageError"
	// ConfigurationError: detected at startup; the conductor refuses
	// to start.
	ConfigurationError FaultKind = "ConfigurationError"
	// Shutdown: cooperative cancellation; workflows drain and exit.
	Shutdown FaultKind = "Shutdown"
	// Internal marks a programmer error — an invariant the rest of the
	// codebase assumed would never be violated.
	Internal FaultKind = "Internal"
)

// Fault is the error type every unwinding failure in the core is
// wrapped in, so callers can branch on Kind without string matching.
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Kind, f.Op)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Storage wraps err as a StorageError fault raised during op.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: StorageError, Op: op, Err: err}
}

// Configuration wraps err as a ConfigurationError fault raised during op.
func Configuration(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: ConfigurationError, Op: op, Err: err}
}

// IsKind reports whether err is a *Fault of the given kind.
func IsKind(err error, kind FaultKind) bool {
	f, ok := err.(*Fault)
	return ok && f.Kind == kind
}
