// Package apperror defines the error kinds returned by every operation and
// their HTTP rendering.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/postcare/postcare/internal/store"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnauthenticated     Kind = "Unauthenticated"
	KindAuthorization       Kind = "AuthorizationError"
	KindNotFound            Kind = "NotFound"
	KindValidation          Kind = "ValidationError"
	KindDuplicateEmail      Kind = "DuplicateEmail"
	KindConstraintViolation Kind = "ConstraintViolation"
	KindInvalidCredentials  Kind = "InvalidCredentials"
	KindInternal            Kind = "InternalError"
)

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicateEmail, KindConstraintViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type surfaced to clients. Err is never rendered.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation reports the first invalid field.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

// Internal wraps an unexpected failure. The cause is logged, never rendered.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the kind from err, treating unknown errors as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStore translates store sentinels. resource names the entity for
// not-found messages.
func FromStore(err error, resource string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NotFound(resource)
	case errors.Is(err, store.ErrDuplicateEmail):
		return &Error{Kind: KindDuplicateEmail, Field: "email", Message: "email already registered", Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConstraintViolation, Message: "conflicting " + resource + " already exists", Err: err}
	case errors.Is(err, store.ErrMissingParent):
		return &Error{Kind: KindNotFound, Message: "referenced record not found", Err: err}
	case errors.Is(err, store.ErrInvalidOrigin):
		return &Error{Kind: KindConstraintViolation, Message: "medication must belong to exactly one of plan or patient", Err: err}
	default:
		return Internal(err)
	}
}
