// Package apperrors defines the structured error taxonomy used across the
// engine. Every error that crosses a service boundary should carry a Kind so
// HTTP handlers and MCP tools can map it to a status code without string
// matching.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error into a small, stable set of categories.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnsupported Kind = "unsupported"
	KindTimeout     Kind = "timeout"
	KindUpstream    Kind = "upstream"
	KindRateLimited Kind = "rate_limited"
	KindInternal    Kind = "internal"
)

// HTTPStatus maps a Kind to the status code the HTTP handlers should return.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnsupported:
		return 422
	case KindTimeout:
		return 504
	case KindUpstream:
		return 502
	case KindRateLimited:
		return 429
	case KindInternal:
		return 500
	default:
		return 500
	}
}

// Error is the structured error type returned by services, repositories, and
// adapters. Handlers unwrap to *Error to build a response body; anything that
// doesn't unwrap is treated as KindInternal so no internal detail leaks.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// RetryAfter is set on KindRateLimited errors to the duration the
	// caller should wait before the provider's window has room again.
	// Zero means no hint is available.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validation is a convenience constructor for the common validation case.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound is a convenience constructor for the common not-found case.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// RateLimited is a convenience constructor carrying a retry-after hint
// alongside the common rate-limit case.
func RateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...), RetryAfter: retryAfter}
}

// GetKind extracts the Kind from an error, defaulting to KindInternal for
// errors that were never classified.
func GetKind(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus is a convenience wrapper around GetKind(err).HTTPStatus().
func HTTPStatus(err error) int {
	return GetKind(err).HTTPStatus()
}

// Sentinel errors kept for equality checks (errors.Is) in places that predate
// the Kind taxonomy and in tests; new code should prefer the constructors
// above so a Kind is always attached.
var (
	ErrNotFound               = &Error{Kind: KindNotFound, Message: "not found"}
	ErrConflict               = &Error{Kind: KindConflict, Message: "conflict"}
	ErrCredentialsKeyMismatch = &Error{Kind: KindInternal, Message: "connection credentials were encrypted with a different key"}
)
