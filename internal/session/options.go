package session

import (
	"time"

	"github.com/flemzord/threadline/pkg/message"
)

// SendOptions are the per-call options of SendMessage. Every field is
// optional.
type SendOptions struct {
	// ConversationID groups the turn. A new UUID is generated when empty.
	ConversationID string

	// ParentMessageID links the new user message to an earlier turn.
	ParentMessageID string

	// MessageID is the ID of the new user message. A new UUID is generated
	// when empty.
	MessageID string

	// Timeout overrides Config.Timeout for this call.
	Timeout time.Duration

	// Stream requests the streaming transport. It is implied by OnProgress.
	Stream bool

	// OnProgress receives the partial assistant message after each streamed
	// delta. Text is the untrimmed cumulative text. It is never called after
	// SendMessage returns.
	OnProgress func(partial message.ChatMessage)

	// PrecomputedResponse, when non-empty, is used verbatim as the assistant
	// text. Neither the assembler nor the backend is invoked.
	PrecomputedResponse string
}

func (o SendOptions) streaming() bool {
	return o.Stream || o.OnProgress != nil
}
