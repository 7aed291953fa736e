package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for backend operations.
var (
	// ErrBackend matches every *Error via errors.Is.
	ErrBackend = errors.New("backend error")

	// ErrMalformedResponse indicates a success status whose payload lacks
	// the completion content.
	ErrMalformedResponse = errors.New("malformed backend response")

	// ErrStreamTerminated indicates the connection dropped before the
	// stream's termination sentinel arrived.
	ErrStreamTerminated = errors.New("stream terminated before completion")
)

// Error is returned when the completion endpoint answers with a non-success
// status. It is never retried by this module; callers own retry policy.
type Error struct {
	StatusCode int
	Status     string
	// Reason is the provider's error message when it could be extracted,
	// otherwise the raw body.
	Reason string
}

// NewError builds an Error for the given status code.
func NewError(statusCode int, reason string) *Error {
	return &Error{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Reason:     reason,
	}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend: HTTP %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("backend: HTTP %d %s: %s", e.StatusCode, e.Status, e.Reason)
}

// Is makes errors.Is(err, ErrBackend) true for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrBackend
}

// Retryable reports whether a caller could reasonably retry the request
// later: rate limiting and server-side failures.
func (e *Error) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRetryable reports whether err is a retryable backend error.
func IsRetryable(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Retryable()
}
