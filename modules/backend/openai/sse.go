package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/flemzord/threadline/internal/backend"
)

// scannerBufferSize is the max token size for the SSE line scanner.
// Default bufio.Scanner limit is ~64 KiB which is too small for long
// completion events.
const scannerBufferSize = 1 * 1024 * 1024 // 1 MB

// sendChunk sends a StreamChunk on ch, respecting context cancellation.
// Returns false if the context was cancelled (caller should return).
func sendChunk(ctx context.Context, ch chan<- backend.StreamChunk, chunk backend.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// readStream reads an SSE stream from body and sends parsed chunks on ch.
// The channel is closed when the stream ends, either normally ([DONE]),
// on error, or when ctx is cancelled. body is always closed.
//
// A stream that ends without the [DONE] sentinel yields a final chunk
// wrapping backend.ErrStreamTerminated.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- backend.StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Close body on context cancellation to unblock the scanner.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			sendChunk(ctx, ch, backend.StreamChunk{Err: ctx.Err()})
			return
		}

		line := scanner.Text()

		// Lines starting with ":" are comments (keep-alives).
		if strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var event completionResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			sendChunk(ctx, ch, backend.StreamChunk{
				Err: fmt.Errorf("openai: %w: %w", backend.ErrMalformedResponse, err),
			})
			return
		}
		if event.Error != nil && event.Error.Message != "" {
			sendChunk(ctx, ch, backend.StreamChunk{
				Err: fmt.Errorf("openai: %w: %s", backend.ErrBackend, event.Error.Message),
			})
			return
		}

		chunk := backend.StreamChunk{
			ID:    event.ID,
			Model: event.Model,
			Usage: fromUsage(event.Usage),
		}
		if len(event.Choices) > 0 {
			chunk.Delta = event.Choices[0].Text
			chunk.FinishReason = mapFinishReason(event.Choices[0].FinishReason)
		}
		if chunk.Delta == "" && chunk.FinishReason == "" && chunk.Usage == nil {
			continue
		}
		if !sendChunk(ctx, ch, chunk) {
			return
		}
	}

	// If scanner stopped due to context cancellation (body closed), report context error.
	if ctx.Err() != nil {
		sendChunk(ctx, ch, backend.StreamChunk{Err: ctx.Err()})
		return
	}

	if err := scanner.Err(); err != nil {
		sendChunk(ctx, ch, backend.StreamChunk{
			Err: fmt.Errorf("openai: %w: %w", backend.ErrStreamTerminated, mapConnectionError(err)),
		})
		return
	}
	sendChunk(ctx, ch, backend.StreamChunk{
		Err: fmt.Errorf("openai: %w: missing [DONE]", backend.ErrStreamTerminated),
	})
}
