package site

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline error. Kinds are string codes so they read
// well in logs and serialize naturally to JSON.
type ErrorKind string

const (
	// KindProviderUnavailable covers network errors, timeouts and non-2xx
	// responses from a provider.
	KindProviderUnavailable ErrorKind = "PROVIDER_UNAVAILABLE"

	// KindMalformedResponse means a provider answered with a payload that
	// failed schema or range validation.
	KindMalformedResponse ErrorKind = "MALFORMED_RESPONSE"

	// KindConfigurationInvalid means the business configuration is missing a
	// field the pipeline strictly requires. It is pipeline-fatal.
	KindConfigurationInvalid ErrorKind = "CONFIGURATION_INVALID"

	// KindCancelled means an external cancellation signal was observed.
	KindCancelled ErrorKind = "CANCELLED"
)

// Sentinel errors matched by errors.Is against any *Error of the same kind.
var (
	ErrProviderUnavailable  = &Error{Kind: KindProviderUnavailable}
	ErrMalformedResponse    = &Error{Kind: KindMalformedResponse}
	ErrConfigurationInvalid = &Error{Kind: KindConfigurationInvalid}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// Error is a classified pipeline error.
type Error struct {
	Kind ErrorKind
	Op   string // operation or stage that produced the error
	Err  error  // underlying cause, may be nil
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err, or "" if err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
