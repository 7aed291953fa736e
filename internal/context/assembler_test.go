package ctxengine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	ctxengine "github.com/flemzord/threadline/internal/context"
	"github.com/flemzord/threadline/internal/store/storetest"
	"github.com/flemzord/threadline/pkg/message"
)

func testConfig(maxModel, maxResponse int) ctxengine.WindowConfig {
	return ctxengine.WindowConfig{
		MaxModelTokens:    maxModel,
		MaxResponseTokens: maxResponse,
		UserLabel:         "U",
		AssistantLabel:    "A",
		EndToken:          "#",
		PromptPrefix:      testPrefix,
		PromptSuffix:      testSuffix,
	}
}

// ---------------------------------------------------------------------------
// Full history fits
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_FullChain(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewAssembler(&lenCounter{}, chainStore(), testConfig(10000, 100))

	win, err := a.Assemble(context.Background(), "five", "a2")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := testPrefix +
		"U:\n\none#\n\n" +
		"A:\n\ntwo#\n\n" +
		"U:\n\nthree#\n\n" +
		"A:\n\nfour#\n\n" +
		"U:\n\nfive#" +
		testSuffix
	if win.Prompt != want {
		t.Errorf("Prompt = %q, want %q", win.Prompt, want)
	}
	if win.PromptTokens != len(want) {
		t.Errorf("PromptTokens = %d, want %d", win.PromptTokens, len(want))
	}
	if win.Turns != 5 {
		t.Errorf("Turns = %d, want 5", win.Turns)
	}
	if win.Truncated {
		t.Error("Truncated = true, want false")
	}
	if win.ResponseBudget != 100 {
		t.Errorf("ResponseBudget = %d, want 100", win.ResponseBudget)
	}
}

// ---------------------------------------------------------------------------
// Truncation drops the oldest turns first
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_DropsOldestTurns(t *testing.T) {
	t.Parallel()

	threeTurns := testPrefix +
		"U:\n\nthree#\n\n" +
		"A:\n\nfour#\n\n" +
		"U:\n\nfive#" +
		testSuffix

	// The prompt budget fits exactly three turns.
	cfg := testConfig(len(threeTurns)+10, 10)
	st := chainStore()
	a := ctxengine.NewAssembler(&lenCounter{}, st, cfg)

	win, err := a.Assemble(context.Background(), "five", "a2")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if win.Prompt != threeTurns {
		t.Errorf("Prompt = %q, want %q", win.Prompt, threeTurns)
	}
	if strings.Contains(win.Prompt, "two") || strings.Contains(win.Prompt, "one") {
		t.Error("oldest turns should have been dropped")
	}
	if win.Turns != 3 {
		t.Errorf("Turns = %d, want 3", win.Turns)
	}
	if !win.Truncated {
		t.Error("Truncated = false, want true")
	}
	if win.ResponseBudget != 10 {
		t.Errorf("ResponseBudget = %d, want 10", win.ResponseBudget)
	}

	// The walk stops at the first rejected candidate: a2, u2, a1 are read,
	// u1 is never needed.
	if got := len(st.GetCalls); got != 3 {
		t.Errorf("store lookups = %d (%v), want 3", got, st.GetCalls)
	}
}

func TestAssembler_Assemble_OversizedFirstTurnStillReturned(t *testing.T) {
	t.Parallel()

	st := chainStore()
	a := ctxengine.NewAssembler(&lenCounter{}, st, testConfig(20, 10))

	text := strings.Repeat("x", 100)
	win, err := a.Assemble(context.Background(), text, "a2")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := testPrefix + "U:\n\n" + text + "#" + testSuffix
	if win.Prompt != want {
		t.Errorf("Prompt = %q, want the oversized single turn", win.Prompt)
	}
	if win.Turns != 1 {
		t.Errorf("Turns = %d, want 1", win.Turns)
	}
	if win.ResponseBudget != 1 {
		t.Errorf("ResponseBudget = %d, want 1", win.ResponseBudget)
	}
	if len(st.GetCalls) != 0 {
		t.Errorf("store lookups = %v, want none", st.GetCalls)
	}
}

// ---------------------------------------------------------------------------
// Chain termination
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_NoParent(t *testing.T) {
	t.Parallel()

	st := chainStore()
	a := ctxengine.NewAssembler(&lenCounter{}, st, testConfig(10000, 100))

	win, err := a.Assemble(context.Background(), "hi", "")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := testPrefix + "U:\n\nhi#" + testSuffix
	if win.Prompt != want {
		t.Errorf("Prompt = %q, want %q", win.Prompt, want)
	}
	if len(st.GetCalls) != 0 {
		t.Errorf("store lookups = %v, want none", st.GetCalls)
	}
}

func TestAssembler_Assemble_MissingParentStopsWalk(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewAssembler(&lenCounter{}, chainStore(), testConfig(10000, 100))

	win, err := a.Assemble(context.Background(), "hi", "evicted")
	if err != nil {
		t.Fatalf("Assemble: unexpected error: %v", err)
	}
	if win.Turns != 1 {
		t.Errorf("Turns = %d, want 1", win.Turns)
	}
}

func TestAssembler_Assemble_StopsOnCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		msgs      []*message.ChatMessage
		parent    string
		wantTurns int
	}{
		{
			name: "self parent",
			msgs: []*message.ChatMessage{
				{ID: "p", Role: message.RoleUser, Text: "loop", ParentMessageID: "p"},
			},
			parent:    "p",
			wantTurns: 2,
		},
		{
			name: "two message cycle",
			msgs: []*message.ChatMessage{
				{ID: "u1", Role: message.RoleUser, Text: "loop", ParentMessageID: "a1"},
				{ID: "a1", Role: message.RoleAssistant, Text: "back", ParentMessageID: "u1"},
			},
			parent:    "a1",
			wantTurns: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := storetest.NewMockStore(tt.msgs...)
			// A constant counter never trips the budget, so only the
			// cycle check can end the walk.
			constant := ctxengine.CounterFunc(func(context.Context, string) (int, error) { return 1, nil })
			a := ctxengine.NewAssembler(constant, st, testConfig(10000, 100))

			win, err := a.Assemble(context.Background(), "new", tt.parent)
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			if win.Turns != tt.wantTurns {
				t.Errorf("Turns = %d, want %d", win.Turns, tt.wantTurns)
			}
			if n := strings.Count(win.Prompt, "loop"); n != 1 {
				t.Errorf("prompt repeats a turn %d times: %q", n, win.Prompt)
			}
		})
	}
}

func TestAssembler_Assemble_UnsetRoleFormattedAsUser(t *testing.T) {
	t.Parallel()

	st := storetest.NewMockStore(&message.ChatMessage{ID: "p", Text: "old"})
	a := ctxengine.NewAssembler(&lenCounter{}, st, testConfig(10000, 100))

	win, err := a.Assemble(context.Background(), "new", "p")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.Contains(win.Prompt, "U:\n\nold#\n\n") {
		t.Errorf("Prompt = %q, want parent labelled as user", win.Prompt)
	}
}

// ---------------------------------------------------------------------------
// Idempotence and budgets
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_Idempotent(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewAssembler(&lenCounter{}, chainStore(), testConfig(80, 20))

	first, err := a.Assemble(context.Background(), "five", "a2")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	second, err := a.Assemble(context.Background(), "five", "a2")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if first != second {
		t.Errorf("second assembly differs:\n first = %+v\nsecond = %+v", first, second)
	}
}

func TestAssembler_Assemble_BudgetInvariants(t *testing.T) {
	t.Parallel()

	for _, maxModel := range []int{40, 60, 80, 120, 500} {
		const maxResponse = 30
		a := ctxengine.NewAssembler(&lenCounter{}, chainStore(), testConfig(maxModel, maxResponse))

		win, err := a.Assemble(context.Background(), "five", "a2")
		if err != nil {
			t.Fatalf("maxModel=%d: Assemble: %v", maxModel, err)
		}
		if win.ResponseBudget < 1 || win.ResponseBudget > maxResponse {
			t.Errorf("maxModel=%d: ResponseBudget = %d, want within [1, %d]", maxModel, win.ResponseBudget, maxResponse)
		}
		if win.PromptTokens <= maxModel-maxResponse && win.PromptTokens+win.ResponseBudget > maxModel {
			t.Errorf("maxModel=%d: prompt %d + budget %d exceeds model limit", maxModel, win.PromptTokens, win.ResponseBudget)
		}
	}
}

// ---------------------------------------------------------------------------
// Default preamble
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_DefaultPrefixAndSuffix(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewAssembler(&lenCounter{}, storetest.NewMockStore(), ctxengine.WindowConfig{})
	a.SetClock(func() time.Time {
		return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	})

	win, err := a.Assemble(context.Background(), "Hello", "")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	want := "Instructions:\nYou are ChatGPT, a large language model trained by OpenAI.\n" +
		"Current date: 2024-01-02<|endoftext|>\n\n" +
		"User:\n\nHello<|endoftext|>" +
		"\n\nChatGPT:\n"
	if win.Prompt != want {
		t.Errorf("Prompt = %q, want %q", win.Prompt, want)
	}
	if win.ResponseBudget != ctxengine.DefaultMaxResponseTokens {
		t.Errorf("ResponseBudget = %d, want %d", win.ResponseBudget, ctxengine.DefaultMaxResponseTokens)
	}
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestAssembler_Assemble_StoreError(t *testing.T) {
	t.Parallel()

	st := chainStore()
	st.GetErr = errors.New("store down")
	a := ctxengine.NewAssembler(&lenCounter{}, st, testConfig(10000, 100))

	_, err := a.Assemble(context.Background(), "hi", "a2")
	if err == nil || !strings.Contains(err.Error(), "store down") {
		t.Fatalf("Assemble error = %v, want store error", err)
	}
}

func TestAssembler_Assemble_CounterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("tokenizer unavailable")
	counter := ctxengine.CounterFunc(func(context.Context, string) (int, error) {
		return 0, boom
	})
	a := ctxengine.NewAssembler(counter, chainStore(), testConfig(10000, 100))

	_, err := a.Assemble(context.Background(), "hi", "")
	if !errors.Is(err, boom) {
		t.Fatalf("Assemble error = %v, want %v", err, boom)
	}
}

func TestAssembler_Assemble_CancelledContext(t *testing.T) {
	t.Parallel()

	a := ctxengine.NewAssembler(&lenCounter{}, chainStore(), testConfig(10000, 100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Assemble(ctx, "hi", "a2")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Assemble error = %v, want context.Canceled", err)
	}
}
