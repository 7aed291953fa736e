// Package store defines the message store contract used by the context
// assembler and the session orchestrator, with a bounded in-memory default.
package store

import (
	"context"
	"errors"

	"github.com/flemzord/threadline/pkg/message"
)

// ErrInvalidMessage is returned by Set when the message is nil or its ID
// does not match the key it is stored under.
var ErrInvalidMessage = errors.New("store: invalid message")

// MessageStore is a key-value store of chat messages keyed by message ID.
// Implementations must be safe for concurrent use.
type MessageStore interface {
	// Get returns the message stored under id. A missing id yields
	// (nil, nil), never an error.
	Get(ctx context.Context, id string) (*message.ChatMessage, error)

	// Set stores msg under id, replacing any previous value.
	Set(ctx context.Context, id string, msg *message.ChatMessage) error
}

// Pinger is an optional interface for stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckSet validates the arguments of a Set call. Adapters call it before
// writing so all implementations reject the same inputs.
func CheckSet(id string, msg *message.ChatMessage) error {
	if msg == nil || id == "" || msg.ID != id {
		return ErrInvalidMessage
	}
	return nil
}
