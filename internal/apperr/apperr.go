// Package apperr defines the error taxonomy surfaced by request-style operations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	Unauthenticated Code = "unauthenticated"
	InvalidArgument Code = "invalid-argument"
	NotFound        Code = "not-found"
	Internal        Code = "internal"
)

// Error carries a taxonomy code, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func Invalid(format string, args ...any) *Error {
	return New(InvalidArgument, fmt.Sprintf(format, args...))
}

func Missing(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// CodeOf returns the taxonomy code of err. Errors outside the taxonomy are Internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Message returns the caller-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func HTTPStatus(code Code) int {
	switch code {
	case Unauthenticated:
		return http.StatusUnauthorized
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
