// Package apperrors defines the error-kind taxonomy shared by every layer
// of the control plane. Handlers at the outermost HTTP/WS boundary map
// these to protocol-level status codes and close codes; everything below
// that boundary returns (or wraps) one of these kinds via errors.Is/As.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind enumerates the abstract error kinds from the error-handling design.
type Kind string

const (
	KindAuth          Kind = "auth"          // missing/invalid/expired credential
	KindForbidden     Kind = "forbidden"     // authenticated but not permitted
	KindNotFound      Kind = "not_found"     // target entity absent
	KindValidation    Kind = "validation"    // malformed input
	KindConflict      Kind = "conflict"      // idempotency collision or duplicate state
	KindUpstream      Kind = "upstream"      // downstream unavailable or timed out
	KindInternal      Kind = "internal"      // unexpected
	KindConfiguration Kind = "configuration" // missing required operator-level config
)

// Error wraps a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is implements errors.Is matching by Kind only, so callers can write
// errors.Is(err, apperrors.NotFound("")) without matching Message/Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func new_(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Auth(msg string) *Error          { return new_(KindAuth, msg) }
func Forbidden(msg string) *Error     { return new_(KindForbidden, msg) }
func NotFound(msg string) *Error      { return new_(KindNotFound, msg) }
func Validation(msg string) *Error    { return new_(KindValidation, msg) }
func Conflict(msg string) *Error      { return new_(KindConflict, msg) }
func Configuration(msg string) *Error { return new_(KindConfiguration, msg) }

// Upstream wraps a downstream failure, preserving the cause for logging.
func Upstream(msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Cause: cause}
}

// Internal wraps an unexpected failure, preserving the cause for logging.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to KindInternal for unrecognised errors — unexpected failures are never
// silently treated as any other kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to the HTTP status code from §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindAuth:
		return 401
	case KindForbidden:
		return 403
	case KindNotFound:
		return 404
	case KindValidation:
		return 400
	case KindConflict:
		return 409
	case KindUpstream:
		return 502
	case KindConfiguration:
		return 500
	default:
		return 500
	}
}

// WSCloseCode maps a Kind to the WebSocket close code from §6, returning 0
// ("not a close-worthy error") for kinds with no WS close-code mapping.
func (k Kind) WSCloseCode() int {
	switch k {
	case KindAuth:
		return 4401
	case KindForbidden:
		return 4403
	case KindNotFound:
		return 4004
	default:
		return 0
	}
}
