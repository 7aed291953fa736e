package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run all configured modules, including the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, gf, cmd)
		},
	}
}

// serve blocks until ctx is done. It is shared with the OS service wrapper.
func serve(ctx context.Context, gf *globalFlags, cmd *cobra.Command) error {
	inst, err := gf.open(ctx, cmd, slog.LevelInfo, true)
	if err != nil {
		return err
	}
	return inst.Run(ctx)
}
