// Package storetest provides test helpers for the store package.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
)

// MockStore is a map-backed store.MessageStore that records every call.
// GetErr and SetErr, when non-nil, are returned instead of touching the map.
// SetErrFor fails only writes whose message role matches.
// SetDelay makes each write wait that long first, or fail with the
// context's error if it ends sooner.
// All methods are safe for concurrent use.
type MockStore struct {
	GetErr    error
	SetErr    error
	SetErrFor message.Role
	SetDelay  time.Duration

	mu       sync.Mutex
	messages map[string]*message.ChatMessage
	GetCalls []string
	SetCalls []string
}

// NewMockStore creates a MockStore pre-populated with msgs.
func NewMockStore(msgs ...*message.ChatMessage) *MockStore {
	m := &MockStore{messages: make(map[string]*message.ChatMessage)}
	for _, msg := range msgs {
		m.messages[msg.ID] = msg.Clone()
	}
	return m
}

// Get returns the stored message or nil.
func (m *MockStore) Get(_ context.Context, id string) (*message.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls = append(m.GetCalls, id)
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.messages[id].Clone(), nil
}

// Set stores a copy of msg.
func (m *MockStore) Set(ctx context.Context, id string, msg *message.ChatMessage) error {
	if m.SetDelay > 0 {
		t := time.NewTimer(m.SetDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls = append(m.SetCalls, id)
	if m.SetErr != nil {
		return m.SetErr
	}
	if m.SetErrFor != "" && msg != nil && msg.Role == m.SetErrFor {
		return store.ErrInvalidMessage
	}
	if err := store.CheckSet(id, msg); err != nil {
		return err
	}
	if m.messages == nil {
		m.messages = make(map[string]*message.ChatMessage)
	}
	m.messages[id] = msg.Clone()
	return nil
}

// Message returns the stored message without recording a call.
func (m *MockStore) Message(id string) *message.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[id].Clone()
}

// Len returns the number of stored messages.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// CountRole returns how many stored messages have the given role.
func (m *MockStore) CountRole(role message.Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}

// Interface guard.
var _ store.MessageStore = (*MockStore)(nil)
