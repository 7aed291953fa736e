package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/spf13/cobra"
)

func chatCmd(gf *globalFlags) *cobra.Command {
	var (
		parentID string
		noStream bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation",
		Long: `Start an interactive conversation. Each turn replies to the previous
assistant message. Type /exit or press Ctrl+C to quit, /new to start over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inst, err := gf.open(ctx, cmd, slog.LevelWarn, false)
			if err != nil {
				return err
			}
			defer func() { _ = inst.Close(ctx) }()

			out := cmd.OutOrStdout()
			label := inst.Session.Config().Window.AssistantLabel
			dw := &deltaWriter{w: out}

			var last *message.ChatMessage
			if parentID != "" {
				if last, err = inst.Session.GetMessage(ctx, parentID); err != nil {
					return err
				}
				if last == nil {
					return fmt.Errorf("parent message %s not found", parentID)
				}
			}

			for {
				var text string
				err := huh.NewInput().
					Title("You").
					Prompt("> ").
					Value(&text).
					Run()
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				if err != nil {
					return err
				}

				text = strings.TrimSpace(text)
				switch text {
				case "":
					continue
				case "/exit", "/quit":
					return nil
				case "/new":
					last = nil
					fmt.Fprintln(out, "-- new conversation --")
					continue
				}

				opts := session.SendOptions{Timeout: timeout}
				if last != nil {
					opts.ParentMessageID = last.ID
					opts.ConversationID = last.ConversationID
				}
				fmt.Fprintf(out, "%s: ", label)
				if !noStream {
					dw.reset()
					opts.OnProgress = dw.progress
				}

				reply, err := inst.Session.SendMessage(ctx, text, opts)
				if err != nil {
					// The turn failed; keep the previous parent so the user
					// can retry.
					fmt.Fprintf(out, "\nerror: %v\n\n", err)
					continue
				}
				if noStream {
					fmt.Fprint(out, reply.Text)
				}
				fmt.Fprint(out, "\n\n")
				last = reply
			}
		},
	}

	cmd.Flags().StringVarP(&parentID, "parent", "p", "", "Resume from this message ID")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Print replies only once complete")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Abort each call after this duration")
	return cmd
}
