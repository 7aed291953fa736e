package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/threadline/internal/config"
	"github.com/flemzord/threadline/internal/core"
	"github.com/flemzord/threadline/internal/gateway"
	"github.com/flemzord/threadline/internal/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "threadline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

const minimalConfig = `version: "1"
session:
  backend: backend.openai
  max_model_tokens: 2048
  max_response_tokens: 256
  timeout: 30s
modules:
  backend.openai:
    api_key: sk-unit-test-key-0123456789abcdef
`

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "threadline")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "threadline.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/threadline"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "threadline")
	if got := DefaultDataDir(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(*testing.T) string { return "/nonexistent/config.yaml" }},
		{"invalid yaml", func(t *testing.T) string { return writeConfig(t, "not: valid: yaml: [") }},
		{"validation", func(t *testing.T) string { return writeConfig(t, "modules:\n  backend.openai: {}") }},
		{"missing api key", func(t *testing.T) string {
			return writeConfig(t, "version: \"1\"\nsession:\n  backend: backend.openai\nmodules:\n  backend.openai: {}\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), Options{
				ConfigPath: tt.path(t),
				DataDir:    t.TempDir(),
				LogOutput:  &bytes.Buffer{},
			})
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_BuildsSession(t *testing.T) {
	var logs bytes.Buffer
	inst, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, minimalConfig),
		DataDir:    t.TempDir(),
		LogOutput:  &logs,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = inst.Close(context.Background()) })

	cfg := inst.Session.Config()
	if cfg.Window.MaxModelTokens != 2048 || cfg.Window.MaxResponseTokens != 256 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if inst.Session.APIKey() != "sk-unit-test-key-0123456789abcdef" {
		t.Errorf("APIKey = %q", inst.Session.APIKey())
	}

	reply, err := inst.Session.SendMessage(context.Background(), "hi", session.SendOptions{PrecomputedResponse: "ok"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Text != "ok" {
		t.Errorf("Text = %q, want ok", reply.Text)
	}

	inst.Logger.Info("probe", "key", "sk-unit-test-key-0123456789abcdef")
	if strings.Contains(logs.String(), "sk-unit-test-key") {
		t.Errorf("api key leaked into logs:\n%s", logs.String())
	}
}

func TestNew_ConfiguredStore(t *testing.T) {
	dataDir := t.TempDir()
	inst, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, minimalConfig+"  store.sqlite: {}\n"),
		DataDir:    dataDir,
		LogOutput:  &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = inst.Close(context.Background()) })

	// Without session.store the LRU default is used even when a store
	// module is configured.
	reply, err := inst.Session.SendMessage(context.Background(), "hi", session.SendOptions{PrecomputedResponse: "ok"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got, _ := inst.Session.GetMessage(context.Background(), reply.ID); got == nil {
		t.Error("reply should be retrievable")
	}
}

func TestNew_SQLiteStoreSelected(t *testing.T) {
	dataDir := t.TempDir()
	body := strings.Replace(minimalConfig, "  timeout: 30s\n", "  timeout: 30s\n  store: store.sqlite\n", 1) +
		"  store.sqlite: {}\n"

	first, err := New(context.Background(), Options{ConfigPath: writeConfig(t, body), DataDir: dataDir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reply, err := first.Session.SendMessage(context.Background(), "hi", session.SendOptions{PrecomputedResponse: "persisted"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := first.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second instance over the same data dir sees the stored reply.
	second, err := New(context.Background(), Options{ConfigPath: writeConfig(t, body), DataDir: dataDir, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = second.Close(context.Background()) })

	got, err := second.Session.GetMessage(context.Background(), reply.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got == nil || got.Text != "persisted" {
		t.Errorf("GetMessage = %+v, want persisted reply", got)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "messages.db")); err != nil {
		t.Errorf("sqlite file missing: %v", err)
	}
}

func TestNew_SurfacesLoadGateway(t *testing.T) {
	body := minimalConfig + "  gateway.http:\n    bind: 127.0.0.1:0\n"

	withSurfaces, err := New(context.Background(), Options{
		ConfigPath: writeConfig(t, body),
		DataDir:    t.TempDir(),
		LogOutput:  &bytes.Buffer{},
		Surfaces:   true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = withSurfaces.Close(context.Background()) })

	svc, err := core.ServiceAs[gateway.Sender](withSurfaces.app.Context(), gateway.SessionService)
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	if svc != withSurfaces.Session {
		t.Error("registered session should be the instance session")
	}
}

func TestSessionConfig_Mapping(t *testing.T) {
	t.Parallel()

	temp := 0.2
	sc := config.SessionConfig{
		MaxModelTokens:    1000,
		MaxResponseTokens: 100,
		UserLabel:         "Me",
		AssistantLabel:    "Bot",
		EndToken:          "<end>",
		SepToken:          "<sep>",
		Model:             "m",
		Temperature:       &temp,
		Stop:              []string{"x"},
		User:              "u",
		Timeout:           "2s",
		Debug:             true,
	}
	cfg := SessionConfig(sc)

	if cfg.Window.UserLabel != "Me" || cfg.Window.AssistantLabel != "Bot" {
		t.Errorf("labels = %q/%q", cfg.Window.UserLabel, cfg.Window.AssistantLabel)
	}
	if cfg.Window.EndToken != "<end>" || cfg.Window.SepToken != "<sep>" {
		t.Errorf("tokens = %q/%q", cfg.Window.EndToken, cfg.Window.SepToken)
	}
	if cfg.Params.Model != "m" || *cfg.Params.Temperature != 0.2 || cfg.Params.User != "u" {
		t.Errorf("params = %+v", cfg.Params)
	}
	if cfg.Timeout != 2*time.Second || !cfg.Debug {
		t.Errorf("timeout/debug = %v/%v", cfg.Timeout, cfg.Debug)
	}
}

func TestTelemetryConfig_Mapping(t *testing.T) {
	t.Parallel()

	if got := TelemetryConfig(config.TelemetryConfig{}, "v1"); got.SampleRatio != 1 || got.ServiceVersion != "v1" {
		t.Errorf("defaults = %+v", got)
	}
	ratio := 0.25
	got := TelemetryConfig(config.TelemetryConfig{OTLPEndpoint: "otel:4318", Insecure: true, SampleRatio: &ratio}, "")
	if got.Endpoint != "otel:4318" || !got.Insecure || got.SampleRatio != 0.25 {
		t.Errorf("mapped = %+v", got)
	}
}
