package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flemzord/threadline/internal/mcpserver"
	"github.com/spf13/cobra"
)

func mcpCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the send_message tool over MCP stdio",
		Long: `Serve threadline as a Model Context Protocol server on stdin/stdout.
Logs go to stderr so they never mix with protocol frames.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			inst, err := gf.open(ctx, cmd, slog.LevelWarn, false)
			if err != nil {
				return err
			}
			defer func() { _ = inst.Close(ctx) }()

			srv := mcpserver.New(inst.Session, version, inst.Logger.With("component", "mcp"))
			return srv.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
