// Package openai implements the backend.openai module: the OpenAI text
// completions API, single-shot and server-sent-event streaming.
package openai

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/flemzord/threadline/internal/backend"
	"github.com/flemzord/threadline/internal/core"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Backend{})
}

// Compile-time interface guards.
var (
	_ backend.Backend       = (*Backend)(nil)
	_ backend.HealthChecker = (*Backend)(nil)
	_ backend.Credentialed  = (*Backend)(nil)
	_ core.Module           = (*Backend)(nil)
	_ core.Configurable     = (*Backend)(nil)
	_ core.Provisioner      = (*Backend)(nil)
	_ core.Validator        = (*Backend)(nil)
)

// Doer sends HTTP requests. *http.Client satisfies it; tests and embedders
// may inject their own transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Backend implements the OpenAI completions API as a threadline backend module.
type Backend struct {
	config       Config
	logger       *slog.Logger
	client       Doer
	streamClient Doer

	keyMu  sync.RWMutex
	apiKey string
}

// New creates a Backend without going through the module lifecycle.
// client serves single-shot requests and streamClient serves streams; a
// streaming client must not carry an overall timeout, since that would cut
// long streams short. Cancellation is handled through the request context.
func New(cfg Config, client, streamClient Doer, logger *slog.Logger) *Backend {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		config:       cfg,
		logger:       logger,
		client:       client,
		streamClient: streamClient,
		apiKey:       cfg.APIKey,
	}
}

// ModuleInfo implements core.Module.
func (b *Backend) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "backend.openai",
		New: func() core.Module { return &Backend{} },
	}
}

// Configure implements core.Configurable.
func (b *Backend) Configure(node *yaml.Node) error {
	if err := node.Decode(&b.config); err != nil {
		return err
	}
	b.config.defaults()
	b.apiKey = b.config.APIKey
	return nil
}

// Provision implements core.Provisioner.
func (b *Backend) Provision(ctx *core.AppContext) error {
	b.config.defaults()
	b.logger = ctx.Logger
	b.client = &http.Client{Timeout: b.config.parsedTimeout()}
	b.streamClient = &http.Client{}

	if b.apiKey != "" {
		ctx.RegisterSecret(b.apiKey)
	}
	ctx.RegisterService("backend.openai", b)
	return nil
}

// Validate implements core.Validator.
func (b *Backend) Validate() error {
	if b.APIKey() == "" {
		return errors.New("backend.openai: api_key is required")
	}
	return b.config.validateTimeout()
}

// ModelName returns the configured default model.
func (b *Backend) ModelName() string {
	return b.config.Model
}

// APIKey implements backend.Credentialed.
func (b *Backend) APIKey() string {
	b.keyMu.RLock()
	defer b.keyMu.RUnlock()
	return b.apiKey
}

// SetAPIKey implements backend.Credentialed. The new key applies to
// requests started after the call.
func (b *Backend) SetAPIKey(key string) {
	b.keyMu.Lock()
	defer b.keyMu.Unlock()
	b.apiKey = key
}
