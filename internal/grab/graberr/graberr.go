// Package graberr provides the error taxonomy used across the grab,
// search and session packages. It mirrors the sentinel-error and
// wrap/unwrap idiom of the teacher's internal/errors package, but adds
// the typed Kind/Severity pair the grab engine's callers need to decide
// whether a failure is recoverable.
package graberr

import (
	"errors"
	"fmt"
)

// Severity classifies how serious an error is for the caller.
type Severity string

const (
	Warning Severity = "WARNING"
	Err     Severity = "ERROR"
)

// Kind is the error taxonomy from the spec: invalid input state, channel
// faults, I/O faults, caller contract violations, cancellation, session
// state violations, worker-internal failures, boundary serialization
// failures, and unsupported file types.
type Kind string

const (
	Config                Kind = "config"
	Communication         Kind = "communication"
	IoOperation           Kind = "io_operation"
	InvalidRange          Kind = "invalid_range"
	Interrupted           Kind = "interrupted"
	Protocol              Kind = "protocol"
	Process               Kind = "process"
	InvalidData           Kind = "invalid_data"
	OperationNotSupported Kind = "operation_not_supported"
)

// defaultSeverity mirrors the spec's "WARNING for recoverable (bad input
// type, cancelled build), ERROR for faults requiring caller intervention."
func defaultSeverity(k Kind) Severity {
	switch k {
	case OperationNotSupported, Interrupted:
		return Warning
	default:
		return Err
	}
}

// Error is the concrete error type carried through the session's
// callback events and returned directly from synchronous methods.
type Error struct {
	Kind     Kind
	Severity Severity
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
		}
		return string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error of the given kind with a formatted message and
// the kind's default severity.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     k,
		Severity: defaultSeverity(k),
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap attaches a Kind to an underlying error, keeping it unwrappable.
func Wrap(k Kind, cause error, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return &Error{
		Kind:     k,
		Severity: defaultSeverity(k),
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
	}
}

// WithSeverity overrides the default severity for a specific error site,
// per the spec's "Severity" guidance in §7.
func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// Is reports whether err's Kind matches target's Kind, supporting
// errors.Is against a bare *Error{Kind: K} sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a comparable *Error carrying only a Kind, suitable as
// an errors.Is() target.
func Sentinel(k Kind) *Error {
	return &Error{Kind: k}
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return errors.Is(err, Sentinel(k))
}

// As extracts a *Error from err, if any is present in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
