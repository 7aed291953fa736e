package backend

import (
	"context"
	"errors"
	"strings"
)

// ProgressFunc receives the cumulative text after every content delta.
// It runs synchronously on the goroutine consuming the stream.
type ProgressFunc func(partial string)

// Collect drains a stream into a CompletionResponse, calling onProgress
// (if non-nil) with the text accumulated so far after each delta.
//
// A chunk error wrapping ErrStreamTerminated is treated as a normal end of
// stream when some content has already arrived. Any other error, including
// context cancellation, fails the collection.
func Collect(ctx context.Context, ch <-chan StreamChunk, onProgress ProgressFunc) (CompletionResponse, error) {
	var (
		resp CompletionResponse
		text strings.Builder
	)
	for {
		select {
		case <-ctx.Done():
			return CompletionResponse{}, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				resp.Text = text.String()
				return resp, nil
			}
			if chunk.Err != nil {
				if errors.Is(chunk.Err, ErrStreamTerminated) && text.Len() > 0 && ctx.Err() == nil {
					resp.Text = text.String()
					return resp, nil
				}
				return CompletionResponse{}, chunk.Err
			}
			if chunk.ID != "" {
				resp.ID = chunk.ID
			}
			if chunk.Model != "" {
				resp.Model = chunk.Model
			}
			if chunk.FinishReason != "" {
				resp.FinishReason = chunk.FinishReason
			}
			if chunk.Usage != nil {
				resp.Usage = chunk.Usage
			}
			if chunk.Delta != "" {
				text.WriteString(chunk.Delta)
				if onProgress != nil {
					onProgress(text.String())
				}
			}
		}
	}
}
