// Package errors provides standardized domain errors with codes for the NovelDeck pipelines.
//
// Usage:
//
//	// In services - return typed errors
//	if apiKey == "" {
//	    return errors.NotConfigured("AI API key is not configured")
//	}
//
//	// In schedulers - classify without string matching
//	if errors.Critical(err) {
//	    s.abort()
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeNotConfigured      Code = "NOT_CONFIGURED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeForbidden          Code = "FORBIDDEN"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeBadResponse        Code = "BAD_RESPONSE"
	CodeValidation         Code = "VALIDATION"
	CodeCanceled           Code = "CANCELED"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotConfigured, CodeValidation:
		return http.StatusBadRequest
	case CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUnavailable, CodeBadResponse:
		return http.StatusBadGateway
	case CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNotConfigured      = &Error{Code: CodeNotConfigured, Message: "not configured"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrUnavailable        = &Error{Code: CodeUnavailable, Message: "service unavailable"}
	ErrBadResponse        = &Error{Code: CodeBadResponse, Message: "bad response"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrCanceled           = &Error{Code: CodeCanceled, Message: "canceled"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NotConfigured creates a not configured error.
// Used when credentials, tokens, or endpoints are missing entirely -
// the user needs to configure something, not retry.
func NotConfigured(msg string) *Error {
	return &Error{Code: CodeNotConfigured, Message: msg}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// Forbidden creates a forbidden error.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// RateLimited creates a rate limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Unavailable creates a transient service error.
func Unavailable(msg string) *Error {
	return &Error{Code: CodeUnavailable, Message: msg}
}

// Unavailablef creates a transient service error with formatted message.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// BadResponse creates an error for malformed or empty provider responses.
func BadResponse(msg string) *Error {
	return &Error{Code: CodeBadResponse, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Canceled creates a cancellation error.
func Canceled(msg string) *Error {
	return &Error{Code: CodeCanceled, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// Critical reports whether an error belongs to a configuration-level failure
// class that should abort an entire batch or run. Transient failures
// (UNAVAILABLE, RATE_LIMITED, BAD_RESPONSE) are retryable or skippable and
// are never critical.
func Critical(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeNotConfigured, CodeInvalidCredentials, CodeForbidden:
		return true
	default:
		return false
	}
}

// Retryable reports whether an error is worth a bounded retry with backoff.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		// Unclassified errors (plain network failures) are treated as transient.
		return true
	}
	switch e.Code {
	case CodeUnavailable, CodeRateLimited, CodeBadResponse:
		return true
	default:
		return false
	}
}
