// Package app wires configuration, logging, modules and the Session into a
// runnable instance shared by every threadline command.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/threadline/internal/backend"
	"github.com/flemzord/threadline/internal/config"
	ctxengine "github.com/flemzord/threadline/internal/context"
	"github.com/flemzord/threadline/internal/core"
	"github.com/flemzord/threadline/internal/gateway"
	"github.com/flemzord/threadline/internal/security"
	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const flushTimeout = 5 * time.Second

// Options configures New.
type Options struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Version is reported to tracing and MCP clients.
	Version string

	// Surfaces loads the modules outside the backend and store namespaces,
	// such as gateway.http. One-shot commands leave it off.
	Surfaces bool
}

// Instance is a fully wired application.
type Instance struct {
	Config   *config.Config
	Logger   *slog.Logger
	Session  *session.Session
	Registry *prometheus.Registry

	app             *core.App
	redactor        *security.Redactor
	shutdownTracing telemetry.ShutdownFunc
}

// New loads configuration and builds the Session from the configured
// backend and store modules. The caller must Close the instance.
func New(ctx context.Context, opts Options) (*Instance, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	if err := config.LoadDotEnv(cfgPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	redactor := security.NewRedactor()
	logger := slog.New(security.NewRedactingHandler(
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.LogLevel}),
		redactor,
	))

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	application := core.NewApp(appCtx)

	inst := &Instance{
		Config:          cfg,
		Logger:          logger,
		Registry:        prometheus.NewRegistry(),
		app:             application,
		redactor:        redactor,
		shutdownTracing: func(context.Context) error { return nil },
	}

	providers, others := config.Split(config.Resolve(cfg))
	if err := application.LoadModules(providers); err != nil {
		return nil, err
	}
	redactor.AddLiteral(appCtx.Secrets()...)

	if err := inst.wire(ctx, appCtx, opts); err != nil {
		_ = inst.Close(context.Background())
		return nil, err
	}

	if opts.Surfaces {
		if err := application.LoadModules(others); err != nil {
			_ = inst.Close(context.Background())
			return nil, err
		}
		redactor.AddLiteral(appCtx.Secrets()...)
	}

	return inst, nil
}

// wire builds the Session and publishes it, with the metrics registry, for
// the surface modules.
func (inst *Instance) wire(ctx context.Context, appCtx *core.AppContext, opts Options) error {
	sc := inst.Config.Session

	b, err := core.ServiceAs[backend.Backend](appCtx, sc.Backend)
	if err != nil {
		return err
	}

	var st store.MessageStore
	if sc.Store != "" {
		st, err = core.ServiceAs[store.MessageStore](appCtx, sc.Store)
		if err != nil {
			return err
		}
	} else {
		lru, err := store.NewLRUStore(sc.CacheSize)
		if err != nil {
			return err
		}
		st = lru
	}

	shutdown, err := telemetry.Setup(ctx, TelemetryConfig(inst.Config.Telemetry, opts.Version))
	if err != nil {
		return err
	}
	inst.shutdownTracing = shutdown

	inst.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sess, err := session.New(b, st, nil, SessionConfig(sc),
		session.WithLogger(inst.Logger.With("component", "session")),
		session.WithMetrics(session.NewMetrics(inst.Registry)),
	)
	if err != nil {
		return err
	}
	inst.Session = sess

	appCtx.RegisterService(gateway.SessionService, sess)
	appCtx.RegisterService(gateway.RegistryService, inst.Registry)

	inst.Logger.Info("session ready",
		"backend", sc.Backend,
		"store", cmp.Or(sc.Store, "lru"),
		"model", b.ModelName(),
	)
	return nil
}

// Start starts every loaded module.
func (inst *Instance) Start() error {
	return inst.app.Start()
}

// Run starts the modules and blocks until ctx is done.
func (inst *Instance) Run(ctx context.Context) error {
	err := inst.app.Run(ctx)
	return errors.Join(err, inst.flushTracing())
}

// Close stops every module and flushes pending spans.
func (inst *Instance) Close(_ context.Context) error {
	inst.app.Stop()
	return inst.flushTracing()
}

// AddSecret redacts value from all further log output.
func (inst *Instance) AddSecret(value string) {
	inst.redactor.AddLiteral(value)
}

func (inst *Instance) flushTracing() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return inst.shutdownTracing(ctx)
}

// SessionConfig maps the YAML session section onto session.Config.
func SessionConfig(sc config.SessionConfig) session.Config {
	return session.Config{
		Window: ctxengine.WindowConfig{
			MaxModelTokens:    sc.MaxModelTokens,
			MaxResponseTokens: sc.MaxResponseTokens,
			UserLabel:         sc.UserLabel,
			AssistantLabel:    sc.AssistantLabel,
			EndToken:          sc.EndToken,
			SepToken:          sc.SepToken,
			PromptPrefix:      sc.PromptPrefix,
			PromptSuffix:      sc.PromptSuffix,
		},
		Params: backend.Params{
			Model:            sc.Model,
			Temperature:      sc.Temperature,
			TopP:             sc.TopP,
			PresencePenalty:  sc.PresencePenalty,
			FrequencyPenalty: sc.FrequencyPenalty,
			Stop:             sc.Stop,
			User:             sc.User,
		},
		Timeout: sc.ParsedTimeout(),
		Debug:   sc.Debug,
	}
}

// TelemetryConfig maps the YAML telemetry section onto telemetry.Config.
func TelemetryConfig(tc config.TelemetryConfig, version string) telemetry.Config {
	cfg := telemetry.Config{
		Endpoint:       tc.OTLPEndpoint,
		Insecure:       tc.Insecure,
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		SampleRatio:    1,
	}
	if tc.SampleRatio != nil {
		cfg.SampleRatio = *tc.SampleRatio
	}
	return cfg
}
