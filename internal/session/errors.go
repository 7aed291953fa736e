package session

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned by SendMessage.
var (
	// ErrValidation is returned before any store or network access when the
	// caller's input is unusable.
	ErrValidation = errors.New("session: invalid request")

	// ErrMissingCredential is returned when the backend needs an API key and
	// none is set. It matches ErrValidation.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrValidation)

	// ErrTimeout is returned when the call deadline expires before the
	// backend settles.
	ErrTimeout = errors.New("session: timed out waiting for completion")

	// ErrStore is returned when the user message cannot be stored. The
	// backend is not called.
	ErrStore = errors.New("session: store failure")

	// ErrCanceled is returned when the caller cancels the call before the
	// backend settles.
	ErrCanceled = errors.New("session: canceled")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// settleError maps a finished context to ErrTimeout or ErrCanceled.
func settleError(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrCanceled, err)
}
