package backend_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/flemzord/threadline/internal/backend"
)

func TestError_IsErrBackend(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", backend.NewError(http.StatusBadGateway, "upstream"))
	if !errors.Is(err, backend.ErrBackend) {
		t.Error("expected errors.Is(err, ErrBackend)")
	}
	if errors.Is(err, backend.ErrMalformedResponse) {
		t.Error("backend error must not match ErrMalformedResponse")
	}

	var be *backend.Error
	if !errors.As(err, &be) {
		t.Fatal("expected errors.As to find *Error")
	}
	if be.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", be.StatusCode)
	}
	if be.Status != "Bad Gateway" {
		t.Errorf("Status = %q, want Bad Gateway", be.Status)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	msg := backend.NewError(http.StatusUnauthorized, "Incorrect API key").Error()
	for _, want := range []string{"401", "Unauthorized", "Incorrect API key"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate_limit", err: backend.NewError(http.StatusTooManyRequests, ""), want: true},
		{name: "server_error", err: backend.NewError(http.StatusInternalServerError, ""), want: true},
		{name: "auth", err: backend.NewError(http.StatusUnauthorized, ""), want: false},
		{name: "malformed", err: backend.ErrMalformedResponse, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := backend.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
