package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/flemzord/threadline/internal/backend/backendtest"
	"github.com/flemzord/threadline/internal/session"
	"github.com/flemzord/threadline/internal/store/storetest"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSendMessage_Spans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	b := newMock()
	b.CompleteFunc = backendtest.Replying("ok")
	s := newSession(t, b, storetest.NewMockStore(), session.WithTracer(tp.Tracer("test")))

	if _, err := s.SendMessage(context.Background(), "hi", session.SendOptions{}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	spans := recorder.Ended()
	names := map[string]bool{}
	for _, sp := range spans {
		names[sp.Name()] = true
	}
	if !names["session.SendMessage"] || !names["session.assemble"] {
		t.Errorf("spans = %v, want session.SendMessage and session.assemble", names)
	}
}

func TestSendMessage_SpanRecordsError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	s := newSession(t, newMock(), storetest.NewMockStore(), session.WithTracer(tp.Tracer("test")))
	_, err := s.SendMessage(context.Background(), "", session.SendOptions{})
	if !errors.Is(err, session.ErrValidation) {
		t.Fatalf("error = %v", err)
	}

	for _, sp := range recorder.Ended() {
		if sp.Name() == "session.SendMessage" {
			if sp.Status().Code != codes.Error {
				t.Errorf("status = %v, want Error", sp.Status().Code)
			}
			return
		}
	}
	t.Fatal("session.SendMessage span not recorded")
}
