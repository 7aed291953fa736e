// Package backend defines the completion backend contract: a prompt goes in,
// generated text comes back, either in one response or as a stream of
// deltas ended by a sentinel.
package backend

import "context"

// Backend sends prompts to a text completion service.
// Concrete implementations live in separate packages (e.g., backend.openai)
// and typically also implement core.Module for lifecycle management.
type Backend interface {
	// Complete sends a request and waits for the whole response.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// Stream sends a request with streaming enabled and returns a channel of
	// deltas. The channel is closed after the termination sentinel. Initial
	// connection and HTTP errors are returned directly; mid-stream errors
	// are delivered via StreamChunk.Err, after which the channel is closed.
	// Cancelling ctx terminates the underlying connection.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ModelName returns the identifier of the default model.
	ModelName() string
}

// HealthChecker is an optional interface for backends that can probe the
// remote service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Credentialed is an optional interface for backends holding an API key
// that may be read or rotated at runtime.
type Credentialed interface {
	APIKey() string
	SetAPIKey(key string)
}
