// Package mcpserver exposes a Session to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName = "threadline"

	toolSend = "send_message"
	toolGet  = "get_message"
)

// Sender is the part of *session.Session the MCP tools drive.
type Sender interface {
	SendMessage(ctx context.Context, text string, opts session.SendOptions) (*message.ChatMessage, error)
	GetMessage(ctx context.Context, id string) (*message.ChatMessage, error)
}

// Server is an MCP server with one tool per session operation.
type Server struct {
	sender Sender
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New builds a server exposing sender. version is reported during the MCP
// handshake.
func New(sender Sender, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		sender: sender,
		logger: logger,
		mcp:    server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(toolSend,
		mcp.WithDescription("Send a message to the language model and return its reply. "+
			"Pass the returned message_id as parent_message_id to continue the conversation."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user message.")),
		mcp.WithString("parent_message_id", mcp.Description("ID of the message this one replies to.")),
		mcp.WithString("conversation_id", mcp.Description("Conversation to attach the message to.")),
		mcp.WithNumber("timeout_ms", mcp.Description("Abort the call after this many milliseconds.")),
	), s.handleSend)

	s.mcp.AddTool(mcp.NewTool(toolGet,
		mcp.WithDescription("Look up a stored message by ID."),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("ID of the message.")),
	), s.handleGet)

	return s
}

// Serve speaks MCP over in and out until ctx is done or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server ready", "tools", []string{toolSend, toolGet})
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := session.SendOptions{
		ParentMessageID: req.GetString("parent_message_id", ""),
		ConversationID:  req.GetString("conversation_id", ""),
	}
	if ms := req.GetFloat("timeout_ms", 0); ms > 0 {
		opts.Timeout = time.Duration(ms) * time.Millisecond
	}

	reply, err := s.sender.SendMessage(ctx, text, opts)
	if err != nil {
		s.logger.Warn("mcp send_message failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString(reply.Text)
	fmt.Fprintf(&b, "\n\nmessage_id: %s\nconversation_id: %s\nparent_message_id: %s",
		reply.ID, reply.ConversationID, reply.ParentMessageID)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("message_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := s.sender.GetMessage(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if msg == nil {
		return mcp.NewToolResultError("message not found: " + id), nil
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode message: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
