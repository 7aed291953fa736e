package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts serve to the OS service manager.
type program struct {
	gf     *globalFlags
	cmd    *cobra.Command
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- serve(ctx, p.gf, p.cmd)
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func serviceConfig(gf *globalFlags) (*service.Config, error) {
	args := []string{"serve"}
	if gf.configPath != "" {
		abs, err := filepath.Abs(gf.configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	if gf.dataDir != "" {
		abs, err := filepath.Abs(gf.dataDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--data-dir", abs)
	}
	if gf.logLevel != "" {
		args = append(args, "--log-level", gf.logLevel)
	}
	return &service.Config{
		Name:        "threadline",
		DisplayName: "Threadline",
		Description: "Threaded conversation gateway for text-completion models.",
		Arguments:   args,
	}, nil
}

func serviceCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage threadline as an OS service",
		Long: `Install, control or run threadline under the OS service manager
(systemd, launchd or the Windows service control manager). The installed
service runs "threadline serve" with the --config and --data-dir given here.`,
	}

	newService := func(cmd *cobra.Command) (service.Service, error) {
		cfg, err := serviceConfig(gf)
		if err != nil {
			return nil, err
		}
		return service.New(&program{gf: gf, cmd: cmd}, cfg)
	}

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the threadline service", capitalize(action)),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(cmd)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the threadline service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st, err))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager (used by the installed unit)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(cmd)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})

	return cmd
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
