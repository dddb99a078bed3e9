// Package apperr defines the error taxonomy used across the service and
// maps each kind to the HTTP envelope described in spec §6–7:
// {"success": true, "data": ...} on success, {"success": false, "detail": ...}
// on failure, with the HTTP status reflecting the error kind.
package apperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is one of the error categories from spec §7. It is not a type name
// callers switch on directly — use errors.As to get the *Error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindTransient    Kind = "transient"
	KindFatal        Kind = "fatal"
)

// Error is a typed application error carrying a Kind and a caller-facing
// message. Wrap lower-level errors with Wrap to preserve %w chains.
type Error struct {
	Kind    Kind
	Msg     string
	wrapped error
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.wrapped }

// New creates an Error of the given kind with a plain message.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap creates an Error of the given kind that preserves err in its chain.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, wrapped: err}
}

func Validation(msg string) *Error   { return New(KindValidation, msg) }
func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func Transient(msg string) *Error    { return New(KindTransient, msg) }

// statusFor maps a Kind to the HTTP status spec §7 assigns it.
func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes the {"success": false, "detail": ...} envelope with the
// status derived from err's Kind, defaulting to 500 for untyped errors.
func WriteJSON(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		c.JSON(statusFor(appErr.Kind), gin.H{"success": false, "detail": appErr.Msg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "detail": "internal error"})
}

// OK writes the {"success": true, "data": ...} envelope.
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}
