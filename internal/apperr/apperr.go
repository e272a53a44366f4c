// Package apperr defines the error kinds returned by services and handlers.
// Every kind maps to exactly one HTTP status; the top-level echo error
// handler uses that mapping so individual handlers never write error
// responses themselves.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConfiguration
)

// String returns the name used in the "type" field of error responses.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "ConflictError"
	case KindAuthentication:
		return "AuthenticationError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindNotFound:
		return "NotFoundError"
	case KindConfiguration:
		return "ConfigurationError"
	default:
		return "InternalError"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Violation describes one rejected input field.
type Violation struct {
	Field    string `json:"path,omitempty"`
	Message  string `json:"msg"`
	Location string `json:"location,omitempty"`
}

// Error is the application error type.
type Error struct {
	Kind       Kind
	Message    string      // safe to show to clients for 4xx kinds
	Violations []Violation // only set for KindValidation
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrConflict)
// works for any conflict regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrConflict       = &Error{Kind: KindConflict}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrInternal       = &Error{Kind: KindInternal}
)

// Validation builds a validation error listing every violation found.
func Validation(violations ...Violation) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Violations: violations}
}

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func Unauthenticated(msg string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Cause: cause}
}

func Forbidden(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func Configuration(msg string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Cause: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
