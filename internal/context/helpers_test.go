package ctxengine_test

import (
	"context"

	"github.com/flemzord/threadline/internal/store/storetest"
	"github.com/flemzord/threadline/pkg/message"
)

// lenCounter counts one token per byte, which keeps expected budgets easy
// to compute by hand.
type lenCounter struct {
	calls int
}

func (c *lenCounter) Count(_ context.Context, text string) (int, error) {
	c.calls++
	return len(text), nil
}

// chainStore returns a store holding u1 <- a1 <- u2 <- a2.
func chainStore() *storetest.MockStore {
	return storetest.NewMockStore(
		&message.ChatMessage{ID: "u1", Role: message.RoleUser, Text: "one"},
		&message.ChatMessage{ID: "a1", Role: message.RoleAssistant, Text: "two", ParentMessageID: "u1"},
		&message.ChatMessage{ID: "u2", Role: message.RoleUser, Text: "three", ParentMessageID: "a1"},
		&message.ChatMessage{ID: "a2", Role: message.RoleAssistant, Text: "four", ParentMessageID: "u2"},
	)
}

const (
	testPrefix = "P\n"
	testSuffix = "\nA:\n"
)
