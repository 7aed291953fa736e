// Package ctxengine builds the bounded prompt sent to a completion backend:
// token counting, prompt formatting, and the backward walk over the parent
// chain that drops the oldest turns first.
package ctxengine

import "fmt"

// Default window settings.
const (
	DefaultMaxModelTokens    = 4096
	DefaultMaxResponseTokens = 1000
	DefaultUserLabel         = "User"
	DefaultAssistantLabel    = "ChatGPT"
	DefaultEndToken          = "<|endoftext|>"
)

// WindowConfig holds the token limits and prompt labels for assembly.
type WindowConfig struct {
	// MaxModelTokens is the model's total budget for prompt plus response.
	MaxModelTokens int

	// MaxResponseTokens is reserved for the model's reply.
	MaxResponseTokens int

	// UserLabel and AssistantLabel prefix each turn in the prompt.
	UserLabel      string
	AssistantLabel string

	// EndToken terminates every turn. SepToken closes the prompt preamble
	// and defaults to EndToken.
	EndToken string
	SepToken string

	// PromptPrefix and PromptSuffix replace the generated preamble and
	// assistant cue when non-empty.
	PromptPrefix string
	PromptSuffix string
}

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// defaults.
func (cfg WindowConfig) WithDefaults() WindowConfig {
	if cfg.MaxModelTokens == 0 {
		cfg.MaxModelTokens = DefaultMaxModelTokens
	}
	if cfg.MaxResponseTokens == 0 {
		cfg.MaxResponseTokens = DefaultMaxResponseTokens
	}
	if cfg.UserLabel == "" {
		cfg.UserLabel = DefaultUserLabel
	}
	if cfg.AssistantLabel == "" {
		cfg.AssistantLabel = DefaultAssistantLabel
	}
	if cfg.EndToken == "" {
		cfg.EndToken = DefaultEndToken
	}
	if cfg.SepToken == "" {
		cfg.SepToken = cfg.EndToken
	}
	return cfg
}

// Validate checks the token limits.
func (cfg WindowConfig) Validate() error {
	if cfg.MaxModelTokens <= 0 {
		return fmt.Errorf("ctxengine: max_model_tokens must be positive, got %d", cfg.MaxModelTokens)
	}
	if cfg.MaxResponseTokens <= 0 {
		return fmt.Errorf("ctxengine: max_response_tokens must be positive, got %d", cfg.MaxResponseTokens)
	}
	if cfg.MaxResponseTokens >= cfg.MaxModelTokens {
		return fmt.Errorf("ctxengine: max_response_tokens (%d) must be less than max_model_tokens (%d)",
			cfg.MaxResponseTokens, cfg.MaxModelTokens)
	}
	return nil
}

// MaxPromptTokens is the budget left for the prompt once the response
// reservation is taken out.
func (cfg WindowConfig) MaxPromptTokens() int {
	return cfg.MaxModelTokens - cfg.MaxResponseTokens
}

// StopSequences returns the default stop sequences: the end token and the
// separator token, deduplicated.
func (cfg WindowConfig) StopSequences() []string {
	if cfg.SepToken == "" || cfg.SepToken == cfg.EndToken {
		return []string{cfg.EndToken}
	}
	return []string{cfg.EndToken, cfg.SepToken}
}
