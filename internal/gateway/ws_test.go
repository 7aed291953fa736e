package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func dialWS(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http")+"/v1/ws", &websocket.DialOptions{HTTPHeader: header})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// readUntilFinal reads frames until a done or error frame arrives.
func readUntilFinal(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	var frames []Frame
	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		frames = append(frames, f)
		if f.Type == FrameDone || f.Type == FrameError {
			return frames
		}
	}
}

func TestWebSocket_StreamsTurn(t *testing.T) {
	t.Parallel()

	srv := serve(t, newTestGateway(t, newTestSession(t, newMock()), AuthConfig{}))
	conn := dialWS(t, srv.URL, nil)

	if err := wsjson.Write(t.Context(), conn, SendRequest{Text: "hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readUntilFinal(t, conn)

	if len(frames) != 3 {
		t.Fatalf("frames = %+v, want 2 progress + done", frames)
	}
	if frames[0].Type != FrameProgress || frames[0].Message.Text != "Hel" {
		t.Errorf("frame[0] = %+v", frames[0])
	}
	done := frames[2]
	if done.Type != FrameDone || done.Message == nil || done.Message.Text != "Hello" {
		t.Errorf("final frame = %+v", done)
	}
}

func TestWebSocket_ErrorKeepsConnection(t *testing.T) {
	t.Parallel()

	srv := serve(t, newTestGateway(t, newTestSession(t, newMock()), AuthConfig{}))
	conn := dialWS(t, srv.URL, nil)

	if err := wsjson.Write(t.Context(), conn, SendRequest{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames := readUntilFinal(t, conn)
	last := frames[len(frames)-1]
	if last.Type != FrameError || last.Status != http.StatusBadRequest {
		t.Errorf("frame = %+v, want 400 error", last)
	}

	// The next turn on the same connection still works and can chain.
	if err := wsjson.Write(t.Context(), conn, SendRequest{Text: "again"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	frames = readUntilFinal(t, conn)
	if frames[len(frames)-1].Type != FrameDone {
		t.Errorf("second turn = %+v, want done", frames)
	}
}

func TestWebSocket_RequiresAuth(t *testing.T) {
	t.Parallel()

	srv := serve(t, newTestGateway(t, newTestSession(t, newMock()), AuthConfig{BearerToken: "tok"}))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", nil)
	if err == nil {
		t.Fatal("expected dial to fail without credentials")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("resp = %v, want 401", resp)
	}

	dialWS(t, srv.URL, http.Header{"Authorization": {"Bearer tok"}})
}
