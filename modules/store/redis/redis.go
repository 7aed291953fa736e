// Package redis implements the store.redis module: a message store shared
// between processes through a Redis server, with optional expiry.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/threadline/internal/core"
	"github.com/flemzord/threadline/internal/store"
	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

const moduleID = "store.redis"

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ store.MessageStore = (*Store)(nil)
	_ store.Pinger       = (*Store)(nil)
	_ core.Configurable  = (*Module)(nil)
	_ core.Provisioner   = (*Module)(nil)
	_ core.Validator     = (*Module)(nil)
	_ core.Stopper       = (*Module)(nil)
)

const pingTimeout = 5 * time.Second

// Module wires a Redis-backed Store into the application.
type Module struct {
	config Config
	logger *slog.Logger
	store  *Store
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  moduleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("redis: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The connection is lazy; Validate
// checks the server is reachable.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if err := m.config.validate(); err != nil {
		return err
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:        m.config.Addr,
		Username:    m.config.Username,
		Password:    m.config.Password,
		DB:          m.config.DB,
		DialTimeout: m.config.parsedDialTimeout(),
		PoolSize:    m.config.PoolSize,
		MaxRetries:  m.config.MaxRetries,
	})
	m.store = NewStore(client, m.config.KeyPrefix, m.config.parsedTTL())

	ctx.RegisterSecret(m.config.Password)
	ctx.RegisterService(moduleID, m.store)

	m.logger.Info("redis message store provisioned",
		"addr", m.config.Addr,
		"db", m.config.DB,
		"ttl", m.config.parsedTTL().String(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("redis: ping %s: %w", m.config.Addr, err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	if m.logger != nil {
		m.logger.Info("redis message store stopping")
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Store returns the provisioned message store.
func (m *Module) Store() *Store {
	return m.store
}
