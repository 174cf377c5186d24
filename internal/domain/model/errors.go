package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the routing core wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrConfiguration = errors.New("configuration error")
)

// Error carries the kind, the failing operation and an optional cause.
type Error struct {
	Kind  error
	Op    string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.Error() + ": " + e.Msg
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Is reports kind membership so errors.Is(err, ErrValidation) works through wrapping.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

// Validationf builds an ErrValidation error for op.
func Validationf(op, format string, args ...any) *Error {
	return newError(ErrValidation, op, format, args...)
}

// Authorizationf builds an ErrAuthorization error for op.
func Authorizationf(op, format string, args ...any) *Error {
	return newError(ErrAuthorization, op, format, args...)
}

// Configurationf builds an ErrConfiguration error for op.
func Configurationf(op, format string, args ...any) *Error {
	return newError(ErrConfiguration, op, format, args...)
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}
