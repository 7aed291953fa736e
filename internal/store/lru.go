package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flemzord/threadline/pkg/message"
)

// DefaultCacheSize is the maximum number of messages kept by the default
// in-memory store.
const DefaultCacheSize = 10000

// LRUStore is an in-memory MessageStore with a fixed maximum entry count.
// The least recently used message is evicted when the cache is full.
// Nothing survives a process restart.
type LRUStore struct {
	cache *lru.Cache[string, *message.ChatMessage]
}

// Compile-time interface check.
var _ MessageStore = (*LRUStore)(nil)

// NewLRUStore creates an LRUStore holding at most size messages.
// A size <= 0 selects DefaultCacheSize.
func NewLRUStore(size int) (*LRUStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *message.ChatMessage](size)
	if err != nil {
		return nil, fmt.Errorf("store: create lru: %w", err)
	}
	return &LRUStore{cache: cache}, nil
}

// Get returns a copy of the message stored under id, or nil when absent.
func (s *LRUStore) Get(_ context.Context, id string) (*message.ChatMessage, error) {
	msg, ok := s.cache.Get(id)
	if !ok {
		return nil, nil
	}
	return msg.Clone(), nil
}

// Set stores a copy of msg under id.
func (s *LRUStore) Set(ctx context.Context, id string, msg *message.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckSet(id, msg); err != nil {
		return err
	}
	s.cache.Add(id, msg.Clone())
	return nil
}

// Len returns the number of resident messages.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
