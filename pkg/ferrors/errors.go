// Package ferrors defines the closed set of error kinds the engine
// classifies every failure into, from a worker RPC timeout up to a bad
// algorithm request at the facade. Keeping the set closed lets callers
// switch on Kind instead of matching error strings.
package ferrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the propagation policy.
type Kind string

const (
	BadUserInput        Kind = "bad_user_input"
	Incompatible        Kind = "incompatible"
	Unreachable         Kind = "unreachable"
	Timeout             Kind = "timeout"
	RemoteInternal      Kind = "remote_internal"
	SMPCFailure         Kind = "smpc_failure"
	UDFContractViolation Kind = "udf_contract_violation"
	Cancelled           Kind = "cancelled"
)

// Error is a classified engine error. It wraps an optional cause so
// errors.Unwrap / errors.Is keep working against lower-level errors (a
// context.DeadlineExceeded, a grpc status error, etc).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a classified error around a lower-level cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts the *Error from any error in the chain, if present.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// classified *Error, otherwise RemoteInternal as the conservative default.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return RemoteInternal
}

// IsRetryable reports whether the caller's policy should retry a call that
// failed with this kind. Only network-shaped failures are retryable; every
// other kind is fatal to the step or request that produced it.
func IsRetryable(kind Kind) bool {
	switch kind {
	case Unreachable, Timeout:
		return true
	default:
		return false
	}
}
