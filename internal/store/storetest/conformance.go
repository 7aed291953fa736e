package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
)

// RunConformance exercises the MessageStore contract against the store
// returned by newStore. Each subtest gets a fresh store.
func RunConformance(t *testing.T, newStore func(t *testing.T) store.MessageStore) {
	t.Helper()

	t.Run("missing id yields nil", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(context.Background(), "nope")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got != nil {
			t.Errorf("Get() = %+v, want nil", got)
		}
	})

	t.Run("set then get round trips", func(t *testing.T) {
		s := newStore(t)
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		in := &message.ChatMessage{
			ID:              "a1",
			Role:            message.RoleAssistant,
			Text:            "hello",
			ConversationID:  "c1",
			ParentMessageID: "u1",
			CreatedAt:       created,
			Detail: &message.Detail{
				ResponseID:   "cmpl-1",
				Model:        "m",
				FinishReason: "stop",
				Usage:        &message.Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3},
			},
		}
		if err := s.Set(context.Background(), "a1", in); err != nil {
			t.Fatalf("Set() error: %v", err)
		}

		got, err := s.Get(context.Background(), "a1")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got == nil {
			t.Fatal("Get() = nil, want message")
		}
		if got.ID != "a1" || got.Role != message.RoleAssistant || got.Text != "hello" {
			t.Errorf("got %+v", got)
		}
		if got.ConversationID != "c1" || got.ParentMessageID != "u1" {
			t.Errorf("links = %q/%q", got.ConversationID, got.ParentMessageID)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
		}
		if got.Detail == nil || got.Detail.ResponseID != "cmpl-1" || got.Detail.Usage == nil || got.Detail.Usage.TotalTokens != 3 {
			t.Errorf("detail = %+v", got.Detail)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Set(ctx, "u1", &message.ChatMessage{ID: "u1", Role: message.RoleUser, Text: "v1"}); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		if err := s.Set(ctx, "u1", &message.ChatMessage{ID: "u1", Role: message.RoleUser, Text: "v2"}); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		got, err := s.Get(ctx, "u1")
		if err != nil || got == nil || got.Text != "v2" {
			t.Errorf("Get() = %+v, %v; want text v2", got, err)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		cases := map[string]struct {
			id  string
			msg *message.ChatMessage
		}{
			"nil message":   {"x", nil},
			"empty id":      {"", &message.ChatMessage{}},
			"mismatched id": {"x", &message.ChatMessage{ID: "y"}},
		}
		for name, c := range cases {
			if err := s.Set(ctx, c.id, c.msg); !errors.Is(err, store.ErrInvalidMessage) {
				t.Errorf("%s: error = %v, want ErrInvalidMessage", name, err)
			}
		}
	})

	t.Run("unset role is preserved", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Set(ctx, "m", &message.ChatMessage{ID: "m", Text: "legacy"}); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
		got, err := s.Get(ctx, "m")
		if err != nil || got == nil {
			t.Fatalf("Get() = %v, %v", got, err)
		}
		if got.EffectiveRole() != message.RoleUser {
			t.Errorf("EffectiveRole() = %q, want user", got.EffectiveRole())
		}
	})
}
