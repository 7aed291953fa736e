// Package main is the entry point for the threadline CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/flemzord/threadline/internal/core"
	"github.com/flemzord/threadline/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that builds an app.Instance.
type globalFlags struct {
	configPath string
	dataDir    string
	logLevel   string
	apiKey     string
}

func rootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:           "threadline",
		Short:         "Threaded conversations over text-completion models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&gf.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&gf.dataDir, "data-dir", "", "Directory for persistent data")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "Minimum log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&gf.apiKey, "api-key", "", "Override the backend API key")

	root.AddCommand(
		versionCmd(),
		sendCmd(&gf),
		chatCmd(&gf),
		serveCmd(&gf),
		mcpCmd(&gf),
		serviceCmd(&gf),
		configCmd(&gf),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "threadline %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, ns := range []string{"backend", "store", "gateway"} {
				for _, mod := range core.GetModulesByNamespace(ns) {
					fmt.Fprintf(out, "  %-8s %s\n", ns, mod.ID)
				}
			}
		},
	}
}

// open builds an app.Instance from the global flags. defaultLevel applies
// when --log-level is unset.
func (gf *globalFlags) open(ctx context.Context, cmd *cobra.Command, defaultLevel slog.Level, surfaces bool) (*app.Instance, error) {
	level, err := parseLevel(gf.logLevel, defaultLevel)
	if err != nil {
		return nil, err
	}
	inst, err := app.New(ctx, app.Options{
		ConfigPath: gf.configPath,
		DataDir:    gf.dataDir,
		LogLevel:   level,
		LogOutput:  cmd.ErrOrStderr(),
		Version:    version,
		Surfaces:   surfaces,
	})
	if err != nil {
		return nil, err
	}
	if gf.apiKey != "" {
		inst.AddSecret(gf.apiKey)
		if err := inst.Session.SetAPIKey(gf.apiKey); err != nil {
			_ = inst.Close(ctx)
			return nil, err
		}
	}
	return inst, nil
}

func parseLevel(s string, fallback slog.Level) (slog.Level, error) {
	if s == "" {
		return fallback, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}
