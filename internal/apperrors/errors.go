// Package apperrors carries a discriminated error kind through every
// exported Task Store, Allocator, Broker, and Control Plane operation.
package apperrors

import "fmt"

// Kind is a machine-stable classification of a failure. Callers switch on
// Kind rather than string-matching messages.
type Kind string

const (
	NotFound          Kind = "not_found"
	Duplicate         Kind = "duplicate"
	IllegalTransition Kind = "illegal_transition"
	HTMLNotAvailable  Kind = "html_not_available"
	NoProxyAvailable  Kind = "no_proxy_available"
	BrokerUnavailable Kind = "broker_unavailable"
	StoreUnavailable  Kind = "store_unavailable"
	Validation        Kind = "validation"
)

// Error is the carrier type every exported operation returns instead of a
// bare error. Msg is free-form and safe to show an operator; Kind is what
// callers branch on.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error around an underlying cause, preserving it for
// errors.Is/errors.As chains.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
