package obs

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation and HTTP-status mapping.
type Kind string

const (
	Validation      Kind = "Validation"
	Authentication  Kind = "Authentication"
	Authorization   Kind = "Authorization"
	NotFound        Kind = "NotFound"
	Conflict        Kind = "Conflict"
	PolicyViolation Kind = "PolicyViolation"
	RateLimit       Kind = "RateLimit"
	Timeout         Kind = "Timeout"
	Transient       Kind = "Transient"
	External        Kind = "External"
	Configuration   Kind = "Configuration"
	Internal        Kind = "Internal"
)

// Error is the uniform error type returned by every component so callers can
// branch on Kind without parsing messages.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps Kind to the stable HTTP status the surface responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case Authorization:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case PolicyViolation:
		return http.StatusForbidden
	case RateLimit:
		return http.StatusTooManyRequests
	case Timeout:
		return http.StatusGatewayTimeout
	case Transient, External:
		return http.StatusBadGateway
	case Configuration:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// New builds an *Error with the given kind, stable code, and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches kind/code/message to an underlying error.
func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether err's kind is one the caller should retry:
// Transient, Timeout, or External (assumed 5xx — callers that know the status
// code should check it directly before retrying an External error).
func Retryable(err error) bool {
	switch KindOf(err) {
	case Transient, Timeout, External:
		return true
	default:
		return false
	}
}
