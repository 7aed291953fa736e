package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/spf13/cobra"
)

func sendCmd(gf *globalFlags) *cobra.Command {
	var (
		parentID       string
		conversationID string
		stream         bool
		timeout        time.Duration
		showParent     bool
		asJSON         bool
	)

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the assistant reply followed by the message ids.

Pass the printed message_id as --parent to continue the conversation.
Without a text argument the message is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := messageText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			inst, err := gf.open(ctx, cmd, slog.LevelWarn, false)
			if err != nil {
				return err
			}
			defer func() { _ = inst.Close(ctx) }()

			out := cmd.OutOrStdout()
			if showParent && parentID != "" {
				parent, err := inst.Session.GetMessage(ctx, parentID)
				if err != nil {
					return err
				}
				if parent == nil {
					return fmt.Errorf("parent message %s not found", parentID)
				}
				fmt.Fprintf(out, "[%s] %s\n\n", parent.EffectiveRole(), parent.Text)
			}

			opts := session.SendOptions{
				ParentMessageID: parentID,
				ConversationID:  conversationID,
				Timeout:         timeout,
			}
			var dw *deltaWriter
			if stream && !asJSON {
				dw = &deltaWriter{w: out}
				opts.OnProgress = dw.progress
			}

			reply, err := inst.Session.SendMessage(ctx, text, opts)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reply)
			}
			if dw != nil {
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, reply.Text)
			}
			printIDs(out, reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&parentID, "parent", "p", "", "Message ID this message replies to")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID")
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "Print the reply as it is generated")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Abort the call after this duration")
	cmd.Flags().BoolVar(&showParent, "show-parent", false, "Print the parent message before sending")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the reply message as JSON")
	return cmd
}

// messageText returns the text argument, or stdin when none is given.
func messageText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("no message text given")
	}
	return text, nil
}

func printIDs(w io.Writer, reply *message.ChatMessage) {
	fmt.Fprintf(w, "\nmessage_id: %s\nconversation_id: %s\nparent_message_id: %s\n",
		reply.ID, reply.ConversationID, reply.ParentMessageID)
}

// deltaWriter prints the part of each cumulative progress text not yet
// written.
type deltaWriter struct {
	w       io.Writer
	printed int
}

func (d *deltaWriter) progress(partial message.ChatMessage) {
	if len(partial.Text) <= d.printed {
		return
	}
	_, _ = io.WriteString(d.w, partial.Text[d.printed:])
	d.printed = len(partial.Text)
}

// reset prepares the writer for the next turn.
func (d *deltaWriter) reset() {
	d.printed = 0
}
