// Package lcerrors implements the error taxonomy of the link cost
// subsystem: which failures are validation/lookup errors that must
// propagate to a caller, and which are transient or recoverable conditions
// that are logged and absorbed locally. It is modeled on the host
// repository's database-error classifier (Classify/IsTransient over
// errors.Is/errors.As), applied here to probe and calculator failures
// instead of database connectivity.
package lcerrors

import "errors"

// Sentinel errors for the control-channel taxonomy.
var (
	// ErrNotFound is returned when an operation references an unknown
	// neighbor.
	ErrNotFound = errors.New("linkcost: neighbor not found")
	// ErrInvalidArgument is returned when a request carries an
	// out-of-range value (utilization, packet loss, spectrum strength, or
	// a calculator weight).
	ErrInvalidArgument = errors.New("linkcost: invalid argument")
	// ErrUnavailable is returned when an adaptive calculator was
	// requested but its dependency (the LCM engine) is absent.
	ErrUnavailable = errors.New("linkcost: calculator dependency unavailable")
)

// transientError wraps a probe-level failure (nack, timeout, oversized RTT)
// that the caller should simply retry on the next scheduled probe.
type transientError struct {
	reason string
	err    error
}

func (e *transientError) Error() string {
	if e.err != nil {
		return "linkcost: transient: " + e.reason + ": " + e.err.Error()
	}
	return "linkcost: transient: " + e.reason
}

func (e *transientError) Unwrap() error { return e.err }

// NewTransient wraps err (which may be nil) as a transient error with a
// human-readable reason.
func NewTransient(reason string, err error) error {
	return &transientError{reason: reason, err: err}
}

// IsTransient reports whether err represents a condition that should be
// logged and discarded, retried automatically on the next scheduled probe.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t *transientError
	return errors.As(err, &t)
}

// recoverableError wraps a failure raised from inside a pluggable adaptive
// calculator. The cost engine swallows it and continues with the
// RTT-only candidate.
type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string {
	return "linkcost: recoverable: calculator: " + e.err.Error()
}

func (e *recoverableError) Unwrap() error { return e.err }

// NewRecoverable wraps an error returned by a calculator and absorbed by the
// engine.
func NewRecoverable(err error) error {
	return &recoverableError{err: err}
}

// IsRecoverable reports whether err originated inside an adaptive
// calculator and was already absorbed by the engine.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var r *recoverableError
	return errors.As(err, &r)
}
