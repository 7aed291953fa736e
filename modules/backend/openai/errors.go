package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/flemzord/threadline/internal/backend"
)

// mapHTTPError maps a non-2xx status and body to a *backend.Error.
// Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
		return backend.NewError(statusCode, apiErr.Error.Message)
	}
	return backend.NewError(statusCode, strings.TrimSpace(string(body)))
}

// malformed builds an ErrMalformedResponse carrying whatever diagnostic the
// payload offers.
func malformed(resp *completionResponse) error {
	switch {
	case resp.Error != nil && resp.Error.Message != "":
		return fmt.Errorf("openai: %w: %s", backend.ErrMalformedResponse, resp.Error.Message)
	case resp.Detail != nil:
		if detail, err := json.Marshal(resp.Detail); err == nil {
			return fmt.Errorf("openai: %w: %s", backend.ErrMalformedResponse, detail)
		}
	}
	return fmt.Errorf("openai: %w: no completion choices", backend.ErrMalformedResponse)
}

// mapConnectionError wraps network-level errors. Context errors pass through
// unchanged so callers can tell cancellation from transport failure.
func mapConnectionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("openai: connection: %w", err)
	}
	return fmt.Errorf("openai: %w", err)
}
