// Package backendtest provides test helpers for the backend package.
package backendtest

import (
	"context"
	"sync"

	"github.com/flemzord/threadline/internal/backend"
)

// MockBackend is a configurable test double for backend.Backend.
// Set the Func fields to control behavior. Unset funcs panic on call.
// All methods are safe for concurrent use.
type MockBackend struct {
	CompleteFunc    func(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error)
	StreamFunc      func(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error)
	HealthCheckFunc func(ctx context.Context) error
	Model           string

	mu            sync.Mutex
	key           string
	CompleteCalls int
	StreamCalls   int
	HealthCalls   int
	Requests      []backend.CompletionRequest
}

// Complete delegates to CompleteFunc and tracks call count.
func (m *MockBackend) Complete(ctx context.Context, req backend.CompletionRequest) (backend.CompletionResponse, error) {
	m.mu.Lock()
	m.CompleteCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.CompleteFunc(ctx, req)
}

// Stream delegates to StreamFunc and tracks call count.
func (m *MockBackend) Stream(ctx context.Context, req backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	m.mu.Lock()
	m.StreamCalls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	return m.StreamFunc(ctx, req)
}

// ModelName returns Model.
func (m *MockBackend) ModelName() string {
	return m.Model
}

// HealthCheck delegates to HealthCheckFunc and tracks call count.
func (m *MockBackend) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.HealthCalls++
	m.mu.Unlock()
	return m.HealthCheckFunc(ctx)
}

// APIKey implements backend.Credentialed.
func (m *MockBackend) APIKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// SetAPIKey implements backend.Credentialed.
func (m *MockBackend) SetAPIKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
}

// Calls returns the total number of Complete and Stream calls.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCalls + m.StreamCalls
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockBackend) LastRequest() backend.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return backend.CompletionRequest{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Replying returns a CompleteFunc that always answers text.
func Replying(text string) func(context.Context, backend.CompletionRequest) (backend.CompletionResponse, error) {
	return func(context.Context, backend.CompletionRequest) (backend.CompletionResponse, error) {
		return backend.CompletionResponse{ID: "cmpl-test", Text: text, FinishReason: backend.FinishReasonStop}, nil
	}
}

// Hanging returns a CompleteFunc that never resolves on its own and ignores
// cancellation until release is closed.
func Hanging(release <-chan struct{}) func(context.Context, backend.CompletionRequest) (backend.CompletionResponse, error) {
	return func(context.Context, backend.CompletionRequest) (backend.CompletionResponse, error) {
		<-release
		return backend.CompletionResponse{Text: "too late"}, nil
	}
}

// Streaming returns a StreamFunc that emits one chunk per delta and then
// closes the channel, as a backend does after the termination sentinel.
func Streaming(deltas ...string) func(context.Context, backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
	return func(context.Context, backend.CompletionRequest) (<-chan backend.StreamChunk, error) {
		return StreamOf(chunksFor(deltas)...), nil
	}
}

// StreamOf returns a closed, pre-filled channel of chunks.
func StreamOf(chunks ...backend.StreamChunk) <-chan backend.StreamChunk {
	ch := make(chan backend.StreamChunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func chunksFor(deltas []string) []backend.StreamChunk {
	chunks := make([]backend.StreamChunk, 0, len(deltas))
	for _, d := range deltas {
		chunks = append(chunks, backend.StreamChunk{ID: "cmpl-stream", Delta: d})
	}
	return chunks
}

// Interface guards.
var (
	_ backend.Backend       = (*MockBackend)(nil)
	_ backend.HealthChecker = (*MockBackend)(nil)
	_ backend.Credentialed  = (*MockBackend)(nil)
)
