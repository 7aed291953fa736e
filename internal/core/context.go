package core

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext carries shared resources available to modules during provisioning
// and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	shared        *sharedState
}

// sharedState is common to an AppContext and every context derived from it.
type sharedState struct {
	mu       sync.RWMutex
	services map[string]any
	secrets  []string
}

// NewAppContext creates a new AppContext with the given base logger and data directory.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		parentLogger: logger,
		shared:       &sharedState{services: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the AppContext with module configurations set.
// Each key is a module ID mapping to its raw YAML configuration node.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a new AppContext scoped to the given module ID,
// with a child logger that includes the module ID.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		DataDir:       ctx.DataDir,
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		shared:        ctx.shared,
	}
}

// ModuleConfigured reports whether a configuration section exists for id.
func (ctx *AppContext) ModuleConfigured(id string) bool {
	_, ok := ctx.moduleConfigs[id]
	return ok
}

// RegisterService publishes svc under name. A later registration under the
// same name replaces the earlier one.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.shared.mu.Lock()
	defer ctx.shared.mu.Unlock()
	ctx.shared.services[name] = svc
}

// Service returns the service registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.shared.mu.RLock()
	defer ctx.shared.mu.RUnlock()
	svc, ok := ctx.shared.services[name]
	return svc, ok
}

// RegisterSecret records a credential value that log output must never
// contain. Empty values are ignored.
func (ctx *AppContext) RegisterSecret(value string) {
	if value == "" {
		return
	}
	ctx.shared.mu.Lock()
	defer ctx.shared.mu.Unlock()
	if !slices.Contains(ctx.shared.secrets, value) {
		ctx.shared.secrets = append(ctx.shared.secrets, value)
	}
}

// Secrets returns a copy of every registered secret.
func (ctx *AppContext) Secrets() []string {
	ctx.shared.mu.RLock()
	defer ctx.shared.mu.RUnlock()
	return slices.Clone(ctx.shared.secrets)
}

// LoadModule instantiates and provisions a module by its ID.
// It calls Configure, Provision and Validate if the module implements
// those interfaces. The lifecycle order is:
//
//	New() → Configure() → Provision() → Validate()
//
// Returns the provisioned module instance ready for use.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		moduleCtx := ctx.ForModule(info.ID)
		if err := p.Provision(moduleCtx); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}

// ServiceAs looks up a service by name and asserts it to T.
func ServiceAs[T any](ctx *AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("service %q is not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has type %T, want %T", name, svc, zero)
	}
	return typed, nil
}
