// Package apperr defines the domain error kinds shared by services, repositories and the
// HTTP boundary. Only the middleware translates a Kind into a status code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindInternal is any failure that is not one of the classified kinds.
	KindInternal Kind = iota
	// KindAuthentication means there is no verified session.
	KindAuthentication
	// KindAuthorization means the session is valid but lacks the required permission.
	KindAuthorization
	// KindNotFound means the target entity does not exist.
	KindNotFound
	// KindValidation means the input is malformed.
	KindValidation
	// KindConflict means the input collides with existing state (e.g. duplicate email).
	KindConflict
	// KindRateLimited means the caller exceeded a request budget.
	KindRateLimited
	// KindConfiguration means the system is misconfigured (e.g. no default role).
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified domain error.
type Error struct {
	Kind Kind
	// Message is safe to show to callers for NotFound, Validation and Conflict kinds.
	Message string
	// Field names the offending input for validation failures.
	Field string
	// Cause is never exposed to callers.
	Cause error
	// exposed marks an authentication failure whose Message is safe to show.
	exposed bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error carrying an internal cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Unauthenticated reports a missing or invalid session.
func Unauthenticated(reason string) *Error {
	return New(KindAuthentication, reason)
}

// InvalidCredentials is the single login failure shown to callers, whatever the cause.
func InvalidCredentials() *Error {
	return &Error{Kind: KindAuthentication, Message: "Invalid credentials", exposed: true}
}

// Forbidden reports a missing permission.
func Forbidden() *Error {
	return New(KindAuthorization, "operation not permitted")
}

// NotFound reports an absent entity, e.g. NotFound("user").
func NotFound(entity string) *Error {
	return New(KindNotFound, entity+" not found")
}

// Invalid reports malformed input for a specific field.
func Invalid(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Conflict reports input that collides with existing state.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// RateLimited reports an exhausted request budget.
func RateLimited() *Error {
	return New(KindRateLimited, "too many requests")
}

// Misconfigured reports an operator-facing configuration failure.
func Misconfigured(message string) *Error {
	return New(KindConfiguration, message)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
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

// PublicMessage returns the caller-facing message for err.
// Authentication, authorization, configuration and internal failures use fixed
// messages so that no internal detail or missing-permission name leaks.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindAuthentication:
		if e.exposed {
			return e.Message
		}
		return "Unauthorized"
	case KindAuthorization:
		return "Forbidden"
	case KindRateLimited:
		return "Too many requests"
	case KindConfiguration:
		return "System configuration error"
	case KindNotFound, KindValidation, KindConflict:
		return e.Message
	default:
		return "Internal server error"
	}
}
