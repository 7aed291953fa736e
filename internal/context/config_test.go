package ctxengine_test

import (
	"slices"
	"testing"

	ctxengine "github.com/flemzord/threadline/internal/context"
)

func TestWindowConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	cfg := ctxengine.WindowConfig{}.WithDefaults()

	if cfg.MaxModelTokens != 4096 {
		t.Errorf("MaxModelTokens = %d, want 4096", cfg.MaxModelTokens)
	}
	if cfg.MaxResponseTokens != 1000 {
		t.Errorf("MaxResponseTokens = %d, want 1000", cfg.MaxResponseTokens)
	}
	if cfg.UserLabel != "User" || cfg.AssistantLabel != "ChatGPT" {
		t.Errorf("labels = %q/%q, want User/ChatGPT", cfg.UserLabel, cfg.AssistantLabel)
	}
	if cfg.SepToken != cfg.EndToken {
		t.Errorf("SepToken = %q, want it to default to EndToken %q", cfg.SepToken, cfg.EndToken)
	}
	if cfg.MaxPromptTokens() != 3096 {
		t.Errorf("MaxPromptTokens() = %d, want 3096", cfg.MaxPromptTokens())
	}
}

func TestWindowConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ctxengine.WindowConfig
		wantErr bool
	}{
		{name: "defaults", cfg: ctxengine.WindowConfig{}.WithDefaults()},
		{name: "response_equals_model", cfg: ctxengine.WindowConfig{MaxModelTokens: 100, MaxResponseTokens: 100}, wantErr: true},
		{name: "negative_response", cfg: ctxengine.WindowConfig{MaxModelTokens: 100, MaxResponseTokens: -1}, wantErr: true},
		{name: "zero_model", cfg: ctxengine.WindowConfig{MaxResponseTokens: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWindowConfig_StopSequences(t *testing.T) {
	t.Parallel()

	same := ctxengine.WindowConfig{EndToken: "<|im_end|>"}.WithDefaults()
	if got := same.StopSequences(); !slices.Equal(got, []string{"<|im_end|>"}) {
		t.Errorf("StopSequences() = %v, want single end token", got)
	}

	distinct := ctxengine.WindowConfig{EndToken: "<|im_end|>", SepToken: "<|im_sep|>"}.WithDefaults()
	if got := distinct.StopSequences(); !slices.Equal(got, []string{"<|im_end|>", "<|im_sep|>"}) {
		t.Errorf("StopSequences() = %v, want end and sep tokens", got)
	}
}
