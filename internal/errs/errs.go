// Package errs classifies failures surfaced by the session manager and the
// collection synchronizer.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindValidation
	KindFetch
	KindMutation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindMutation:
		return "mutation"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

var (
	// ErrAuth matches bad credentials, expired sessions and auth transport failures.
	ErrAuth = &Error{Kind: KindAuth}
	// ErrValidation matches bad input caught before any network call.
	ErrValidation = &Error{Kind: KindValidation}
	// ErrFetch matches read failures.
	ErrFetch = &Error{Kind: KindFetch}
	// ErrMutation matches write failures, including not-found.
	ErrMutation = &Error{Kind: KindMutation}
	// ErrNotFound matches writes that addressed a missing row.
	ErrNotFound = &Error{Kind: KindNotFound}
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind only. A not-found error is also a mutation error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindMutation && e.Kind == KindNotFound
}

// Title is the short heading shown in a failure notification.
func (e *Error) Title() string {
	switch e.Kind {
	case KindFetch:
		return "Failed to fetch todos"
	case KindValidation:
		return "Invalid input"
	default:
		return "Error"
	}
}

// Detail is the underlying message shown under the title.
func (e *Error) Detail() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if format != "" {
		e.Message = fmt.Sprintf(format, args...)
	}
	return e
}

// Auth wraps err as an auth failure.
func Auth(op string, err error) *Error {
	return newError(KindAuth, op, err, "")
}

// Validation reports bad input.
func Validation(op, format string, args ...any) *Error {
	return newError(KindValidation, op, nil, format, args...)
}

// Fetch wraps err as a read failure.
func Fetch(op string, err error) *Error {
	return newError(KindFetch, op, err, "")
}

// Mutation wraps err as a write failure.
func Mutation(op string, err error) *Error {
	return newError(KindMutation, op, err, "")
}

// NotFound wraps err as a write against a missing row.
func NotFound(op string, err error) *Error {
	return newError(KindNotFound, op, err, "")
}

// Unknown wraps an unanticipated err.
func Unknown(op string, err error) *Error {
	return newError(KindUnknown, op, err, "")
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As returns err as a classified error, wrapping it as unknown if needed.
func As(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unknown(op, err)
}
