package ctxengine

import (
	"context"
	"strings"
)

// TokenCounter maps text to a token count for a fixed model family.
type TokenCounter interface {
	Count(ctx context.Context, text string) (int, error)
}

// TokenEstimator estimates the token count of a string without failing.
type TokenEstimator interface {
	Estimate(text string) int
}

// CounterFunc adapts a plain function to TokenCounter.
type CounterFunc func(ctx context.Context, text string) (int, error)

// Count calls f.
func (f CounterFunc) Count(ctx context.Context, text string) (int, error) {
	return f(ctx, text)
}

// CharEstimator estimates tokens using a simple characters-per-token ratio.
// A ratio of ~4 works well for English; ~3 for French or other Latin languages.
type CharEstimator struct {
	CharsPerToken float64
}

// NewCharEstimator creates a CharEstimator with the given ratio.
// If charsPerToken is <= 0, defaults to 4.0.
func NewCharEstimator(charsPerToken float64) *CharEstimator {
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return &CharEstimator{CharsPerToken: charsPerToken}
}

// Estimate returns the estimated token count for the given text.
func (e *CharEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := float64(len(text)) / e.CharsPerToken
	// Always round up to avoid underestimation.
	return int(tokens) + 1
}

// Count implements TokenCounter.
func (e *CharEstimator) Count(_ context.Context, text string) (int, error) {
	return e.Estimate(text), nil
}

// FromEstimator wraps a TokenEstimator as a TokenCounter.
func FromEstimator(e TokenEstimator) TokenCounter {
	return CounterFunc(func(_ context.Context, text string) (int, error) {
		return e.Estimate(text), nil
	})
}

// StripSpecialTokens returns a counter that removes every literal
// occurrence of tokens from the text before delegating to inner.
func StripSpecialTokens(inner TokenCounter, tokens ...string) TokenCounter {
	var pairs []string
	for _, tok := range tokens {
		if tok != "" {
			pairs = append(pairs, tok, "")
		}
	}
	if len(pairs) == 0 {
		return inner
	}
	replacer := strings.NewReplacer(pairs...)
	return CounterFunc(func(ctx context.Context, text string) (int, error) {
		return inner.Count(ctx, replacer.Replace(text))
	})
}

// ResponseBudget returns the number of tokens the backend may generate for a
// prompt of promptTokens: never below 1, never above maxResponseTokens.
func ResponseBudget(maxModelTokens, maxResponseTokens, promptTokens int) int {
	return max(1, min(maxModelTokens-promptTokens, maxResponseTokens))
}
