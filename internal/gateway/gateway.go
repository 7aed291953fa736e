// Package gateway exposes a Session over HTTP: JSON and SSE send endpoints,
// a WebSocket stream, message lookup, health and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/threadline/internal/core"
	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

const (
	// SessionService is the service name the gateway resolves its Sender from.
	SessionService = "session"

	// RegistryService is the optional *prometheus.Registry served at /metrics.
	RegistryService = "metrics.registry"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Sender is the part of *session.Session the gateway drives.
type Sender interface {
	SendMessage(ctx context.Context, text string, opts session.SendOptions) (*message.ChatMessage, error)
	GetMessage(ctx context.Context, id string) (*message.ChatMessage, error)
	CheckBackend(ctx context.Context) error
	CheckStore(ctx context.Context) error
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	server    *http.Server
	sender    Sender
	registry  *prometheus.Registry
	metrics   *Metrics
	startedAt time.Time
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. The session must already be
// registered; the metrics registry is optional.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.logger = ctx.Logger

	sender, err := core.ServiceAs[Sender](ctx, SessionService)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	g.sender = sender

	g.registry = prometheus.NewRegistry()
	if reg, err := core.ServiceAs[*prometheus.Registry](ctx, RegistryService); err == nil {
		g.registry = reg
	}
	g.metrics = NewMetrics(g.registry)

	ctx.RegisterSecret(g.config.Auth.BearerToken)
	ctx.RegisterSecret(g.config.Auth.BasicPass)
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	if !g.config.Auth.IsConfigured() && !isLoopback(g.config.Bind) {
		g.logger.Warn("gateway exposed without auth", "bind", g.config.Bind)
	}
	return nil
}

// Start implements core.Starter.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

func isLoopback(bind string) bool {
	host, _, err := net.SplitHostPort(bind)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
