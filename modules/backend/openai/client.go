package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/threadline/internal/backend"
)

// maxResponseSize is the maximum response body size (10 MB).
// Protects against OOM from malformed or huge responses.
const maxResponseSize = 10 * 1024 * 1024

// streamChannelBuffer is the buffer size for the streaming channel.
const streamChannelBuffer = 64

// errNoAPIKey is returned before any network access when no key is set.
var errNoAPIKey = errors.New("openai: api key is not set")

// newHTTPRequest creates an authenticated completion request.
func (b *Backend) newHTTPRequest(ctx context.Context, payload completionRequest) (*http.Request, error) {
	key := b.APIKey()
	if key == "" {
		return nil, errNoAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)
	if b.config.Organization != "" {
		httpReq.Header.Set("OpenAI-Organization", b.config.Organization)
	}
	if payload.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	return httpReq, nil
}

// Complete sends a non-streaming completion request and returns the full response.
func (b *Backend) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	httpReq, err := b.newHTTPRequest(ctx, b.toRequest(req, false))
	if err != nil {
		return backend.CompletionResponse{}, err
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return backend.CompletionResponse{}, mapConnectionError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return backend.CompletionResponse{}, mapConnectionError(err)
	}

	if httpErr := mapHTTPError(resp.StatusCode, body); httpErr != nil {
		return backend.CompletionResponse{}, httpErr
	}

	var decoded completionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return backend.CompletionResponse{}, fmt.Errorf("openai: %w: %w", backend.ErrMalformedResponse, err)
	}

	out, ok := fromResponse(&decoded)
	if !ok {
		return backend.CompletionResponse{}, malformed(&decoded)
	}

	b.logger.Debug("completion received",
		"response_id", out.ID,
		"finish_reason", string(out.FinishReason),
	)
	return out, nil
}

// Stream sends a streaming completion request and returns a channel of chunks.
// Initial connection errors are returned directly. Mid-stream errors are
// delivered via StreamChunk.Err.
func (b *Backend) Stream(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	httpReq, err := b.newHTTPRequest(ctx, b.toRequest(req, true))
	if err != nil {
		return nil, err
	}

	resp, err := b.streamClient.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}

	// Check for HTTP errors before starting the stream.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		return nil, mapHTTPError(resp.StatusCode, body)
	}

	ch := make(chan backend.StreamChunk, streamChannelBuffer)
	go readStream(ctx, resp.Body, ch)

	return ch, nil
}

// HealthCheck validates the backend by sending a minimal 1-token completion.
// This tests the full path: authentication, model access, and quota.
func (b *Backend) HealthCheck(ctx context.Context) error {
	_, err := b.Complete(ctx, backend.CompletionRequest{Prompt: "hi", MaxTokens: 1})
	return err
}
