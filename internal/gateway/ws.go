package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/flemzord/threadline/pkg/message"
)

// Frame types sent by the server on /v1/ws.
const (
	FrameProgress = "progress"
	FrameDone     = "done"
	FrameError    = "error"
)

// Frame is one server-to-client WebSocket message.
type Frame struct {
	Type    string               `json:"type"`
	Message *message.ChatMessage `json:"message,omitempty"`
	Error   string               `json:"error,omitempty"`
	Status  int                  `json:"status,omitempty"`
}

// handleWebSocket serves GET /v1/ws. Each client frame is a SendRequest;
// turns on one connection run sequentially and always stream.
func (g *Gateway) handleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()
		conn.SetReadLimit(g.config.MaxBodyBytes)

		done := g.metrics.streamOpened("websocket")
		defer done()

		ctx := r.Context()
		for {
			var req SendRequest
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
					_ = conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				g.logger.Debug("websocket read ended", "error", err)
				return
			}
			if err := g.serveFrame(ctx, conn, req); err != nil {
				g.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// serveFrame runs one turn. A non-nil error means the connection is unusable.
func (g *Gateway) serveFrame(ctx context.Context, conn *websocket.Conn, req SendRequest) error {
	opts, err := req.options()
	if err != nil {
		return wsjson.Write(ctx, conn, Frame{Type: FrameError, Error: err.Error(), Status: statusOf(err)})
	}

	var writeErr error
	opts.OnProgress = func(partial message.ChatMessage) {
		if writeErr != nil {
			return
		}
		writeErr = wsjson.Write(ctx, conn, Frame{Type: FrameProgress, Message: &partial})
	}

	reply, err := g.sender.SendMessage(ctx, req.Text, opts)
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		g.logSendError(err)
		return wsjson.Write(ctx, conn, Frame{Type: FrameError, Error: err.Error(), Status: statusOf(err)})
	}
	return wsjson.Write(ctx, conn, Frame{Type: FrameDone, Message: reply})
}
