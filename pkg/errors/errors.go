package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping and retry decisions
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindUnauthorized      Kind = "unauthorized"
	KindNotFound          Kind = "not_found"
	KindChallengeRequired Kind = "challenge_required"
	KindNetwork           Kind = "network"
	KindRateLimit         Kind = "rate_limit"
	KindServerError       Kind = "server_error"
	KindParsing           Kind = "parsing"
	KindUnknown           Kind = "unknown"
)

// Error carries a kind, a user-facing message and the upstream status code (0 if none)
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Message: message, Code: code}
}

// Newf creates an Error with a formatted message
func Newf(kind Kind, code int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Code: code}
}

// Wrap attaches a kind and message to an existing error
func Wrap(err error, kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Message: message, Code: code, Err: err}
}

// As extracts an *Error from the chain
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindUnknown when err carries none
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message of err.
// Errors without a kind fall back to err.Error().
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps a kind to the status code the API answers with.
// A challenge is not terminal, so it is reported as 200.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindChallengeRequired:
		return http.StatusOK
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindNetwork, KindServerError, KindParsing:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable checks if an error kind should be retried
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindRateLimit, KindServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}
