package ctxengine

import (
	"context"
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
)

// Window is the result of prompt assembly.
type Window struct {
	// Prompt is the full text sent to the backend.
	Prompt string

	// PromptTokens is the token count of Prompt.
	PromptTokens int

	// ResponseBudget is the max_tokens value for the completion request.
	ResponseBudget int

	// Turns counts the turns included, the new user turn among them.
	Turns int

	// Truncated is true when older history existed but did not fit.
	Truncated bool
}

// Assembler reconstructs conversation history from the message store and
// fits it to the token budget.
type Assembler struct {
	counter TokenCounter
	store   store.MessageStore
	config  WindowConfig
	now     func() time.Time
}

// NewAssembler creates an Assembler. cfg is completed with defaults.
func NewAssembler(counter TokenCounter, st store.MessageStore, cfg WindowConfig) *Assembler {
	return &Assembler{
		counter: counter,
		store:   st,
		config:  cfg.WithDefaults(),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for the date in the preamble.
func (a *Assembler) SetClock(now func() time.Time) {
	a.now = now
}

// Config returns the effective window configuration.
func (a *Assembler) Config() WindowConfig {
	return a.config
}

// Assemble builds the prompt for text, walking back from parentID.
//
// The walk is greedy: each iteration prepends one older turn and recounts
// the whole prompt. It stops at the first candidate over budget (keeping the
// previous one), at the root of the chain, at a parent missing from the
// store, or at an id it has already visited. The very first candidate is always accepted, even when it alone
// exceeds the budget; the backend decides what to do with it.
func (a *Assembler) Assemble(ctx context.Context, text, parentID string) (Window, error) {
	maxPromptTokens := a.config.MaxPromptTokens()
	prefix := a.prefix()
	suffix := a.suffix()

	body := a.formatCurrentTurn(text)

	var (
		win      Window
		accepted bool
		seen     = make(map[string]struct{})
	)
	for turns := 1; ; turns++ {
		if err := ctx.Err(); err != nil {
			return Window{}, err
		}

		candidate := prefix + body + suffix
		n, err := a.counter.Count(ctx, candidate)
		if err != nil {
			return Window{}, fmt.Errorf("ctxengine: count tokens: %w", err)
		}

		if accepted && n > maxPromptTokens {
			win.Truncated = true
			break
		}

		win.Prompt = candidate
		win.PromptTokens = n
		win.Turns = turns
		accepted = true

		if n > maxPromptTokens {
			break
		}
		if parentID == "" {
			break
		}
		if _, dup := seen[parentID]; dup {
			break
		}
		seen[parentID] = struct{}{}

		parent, err := a.store.Get(ctx, parentID)
		if err != nil {
			return Window{}, fmt.Errorf("ctxengine: load parent %s: %w", parentID, err)
		}
		if parent == nil {
			break
		}

		body = a.formatHistoryTurn(parent) + body
		parentID = parent.ParentMessageID
	}

	win.ResponseBudget = ResponseBudget(a.config.MaxModelTokens, a.config.MaxResponseTokens, win.PromptTokens)
	return win, nil
}

func (a *Assembler) prefix() string {
	if a.config.PromptPrefix != "" {
		return a.config.PromptPrefix
	}
	date := a.now().UTC().Format(time.DateOnly)
	return "Instructions:\nYou are " + a.config.AssistantLabel +
		", a large language model trained by OpenAI.\nCurrent date: " + date +
		a.config.SepToken + "\n\n"
}

func (a *Assembler) suffix() string {
	if a.config.PromptSuffix != "" {
		return a.config.PromptSuffix
	}
	return "\n\n" + a.config.AssistantLabel + ":\n"
}

func (a *Assembler) formatCurrentTurn(text string) string {
	return a.config.UserLabel + ":\n\n" + text + a.config.EndToken
}

func (a *Assembler) formatHistoryTurn(m *message.ChatMessage) string {
	label := a.config.UserLabel
	if m.EffectiveRole() == message.RoleAssistant {
		label = a.config.AssistantLabel
	}
	return label + ":\n\n" + m.Text + a.config.EndToken + "\n\n"
}
