package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/flemzord/threadline/internal/config"
	"github.com/flemzord/threadline/internal/security"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func configCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var show bool
	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				gf.configPath = args[0]
			}
			ctx := cmd.Context()

			// Provisioning every module catches errors that schema
			// validation cannot, such as an unreachable database.
			inst, err := gf.open(ctx, cmd, slog.LevelWarn, true)
			if err != nil {
				return err
			}
			defer func() { _ = inst.Close(ctx) }()

			out := cmd.OutOrStdout()
			ids := config.Resolve(inst.Config)
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}

			if show {
				fmt.Fprintln(out)
				return writeRedacted(out, inst.Config)
			}
			return nil
		},
	}
	check.Flags().BoolVar(&show, "show", false, "Print the resolved configuration with secrets redacted")

	cmd.AddCommand(check)
	return cmd
}

// writeRedacted prints cfg as YAML after environment expansion, with every
// secret-looking value masked.
func writeRedacted(w io.Writer, cfg *config.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	security.NewRedactor().RedactMap(doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
