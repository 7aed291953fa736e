package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
	goredis "github.com/redis/go-redis/v9"
)

// Store is a store.MessageStore keeping each message as a JSON string
// value under KeyPrefix+ID.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore wraps an existing client. A zero ttl keeps messages forever.
func NewStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Get implements store.MessageStore.
func (s *Store) Get(ctx context.Context, id string) (*message.ChatMessage, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get message %s: %w", id, err)
	}

	var msg message.ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("redis: decode message %s: %w", id, err)
	}
	return &msg, nil
}

// Set implements store.MessageStore.
func (s *Store) Set(ctx context.Context, id string, msg *message.ChatMessage) error {
	if err := store.CheckSet(id, msg); err != nil {
		return err
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal message %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set message %s: %w", id, err)
	}
	return nil
}

// Ping implements store.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
