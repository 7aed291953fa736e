package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/flemzord/threadline/internal/backend"
	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/pkg/message"
	"github.com/go-chi/chi/v5"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

// SendRequest is the body of POST /v1/messages and of each WebSocket frame
// sent by the client.
type SendRequest struct {
	Text                string `json:"text"`
	ConversationID      string `json:"conversation_id,omitempty"`
	ParentMessageID     string `json:"parent_message_id,omitempty"`
	MessageID           string `json:"message_id,omitempty"`
	TimeoutMS           int64  `json:"timeout_ms,omitempty"`
	Stream              bool   `json:"stream,omitempty"`
	PrecomputedResponse string `json:"precomputed_response,omitempty"`
}

func (r SendRequest) options() (session.SendOptions, error) {
	if r.TimeoutMS < 0 {
		return session.SendOptions{}, fmt.Errorf("%w: timeout_ms must be >= 0", session.ErrValidation)
	}
	return session.SendOptions{
		ConversationID:      r.ConversationID,
		ParentMessageID:     r.ParentMessageID,
		MessageID:           r.MessageID,
		Timeout:             time.Duration(r.TimeoutMS) * time.Millisecond,
		Stream:              r.Stream,
		PrecomputedResponse: r.PrecomputedResponse,
	}, nil
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleSend serves POST /v1/messages. With stream set, the response is a
// text/event-stream of cumulative "progress" events followed by one "done"
// or "error" event.
func (g *Gateway) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, g.config.MaxBodyBytes)

		var req SendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		opts, err := req.options()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if !req.Stream {
			reply, err := g.sender.SendMessage(r.Context(), req.Text, opts)
			if err != nil {
				g.writeSendError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, reply)
			return
		}

		done := g.metrics.streamOpened("sse")
		defer done()

		sse := &sseWriter{w: w, rc: http.NewResponseController(w)}
		opts.OnProgress = func(partial message.ChatMessage) {
			sse.event("progress", partial)
		}

		reply, err := g.sender.SendMessage(r.Context(), req.Text, opts)
		switch {
		case err == nil:
			sse.event("done", reply)
		case !sse.started():
			// Nothing streamed yet, so the failure can still carry a status.
			g.writeSendError(w, err)
		default:
			g.logSendError(err)
			sse.event("error", ErrorResponse{Error: err.Error()})
		}
	}
}

// handleGetMessage serves GET /v1/messages/{id}.
func (g *Gateway) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := g.sender.GetMessage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			g.writeSendError(w, err)
			return
		}
		if msg == nil {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// statusOf maps a session error to the HTTP status reported to the caller.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, session.ErrCanceled):
		return statusClientClosedRequest
	case errors.Is(err, backend.ErrBackend),
		errors.Is(err, backend.ErrMalformedResponse),
		errors.Is(err, backend.ErrStreamTerminated):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) writeSendError(w http.ResponseWriter, err error) {
	g.logSendError(err)
	writeError(w, statusOf(err), err.Error())
}

func (g *Gateway) logSendError(err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		g.logger.Error("gateway send failed", "status", status, "error", err)
		return
	}
	g.logger.Debug("gateway send rejected", "status", status, "error", err)
}

// sseWriter frames server-sent events. Headers are committed on the first
// event so that errors raised before any progress can still use a status code.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	rc      *http.ResponseController
	written bool
}

func (s *sseWriter) started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

func (s *sseWriter) event(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.written {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.written = true
	}
	_, _ = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data)
	_ = s.rc.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
