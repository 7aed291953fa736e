package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/threadline/internal/store"
	"github.com/flemzord/threadline/pkg/message"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store is a store.MessageStore persisted in a SQLite table keyed by
// message ID.
type Store struct {
	db *sql.DB
}

// Get implements store.MessageStore.
func (s *Store) Get(ctx context.Context, id string) (*message.ChatMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, role, text, conversation_id, parent_message_id, detail, created_at
		FROM messages
		WHERE id = ?`, id)

	var (
		msg       message.ChatMessage
		role      string
		detail    string
		createdAt string
	)
	err := row.Scan(&msg.ID, &role, &msg.Text, &msg.ConversationID, &msg.ParentMessageID, &detail, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get message %s: %w", id, err)
	}

	msg.Role = message.Role(role)
	if detail != "" {
		msg.Detail = &message.Detail{}
		if err := json.Unmarshal([]byte(detail), msg.Detail); err != nil {
			return nil, fmt.Errorf("sqlite: decode detail of %s: %w", id, err)
		}
	}
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		msg.CreatedAt = t
	}
	return &msg, nil
}

// Set implements store.MessageStore. An existing row with the same ID is
// replaced.
func (s *Store) Set(ctx context.Context, id string, msg *message.ChatMessage) error {
	if err := store.CheckSet(id, msg); err != nil {
		return err
	}

	var detail string
	if msg.Detail != nil {
		raw, err := json.Marshal(msg.Detail)
		if err != nil {
			return fmt.Errorf("sqlite: marshal detail: %w", err)
		}
		detail = string(raw)
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, role, text, conversation_id, parent_message_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			role = excluded.role,
			text = excluded.text,
			conversation_id = excluded.conversation_id,
			parent_message_id = excluded.parent_message_id,
			detail = excluded.detail,
			created_at = excluded.created_at`,
		id, string(msg.Role), msg.Text, msg.ConversationID, msg.ParentMessageID, detail,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set message %s: %w", id, err)
	}
	return nil
}

// Ping implements store.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
