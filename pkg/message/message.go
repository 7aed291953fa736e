// Package message defines the chat message record shared by the store,
// the context assembler and the session orchestrator.
package message

import "time"

// Role identifies the author of a turn.
type Role string

// Supported roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of a conversation. Messages form a singly linked
// chain through ParentMessageID toward the conversation root.
type ChatMessage struct {
	ID              string    `json:"id"`
	Role            Role      `json:"role"`
	Text            string    `json:"text"`
	ConversationID  string    `json:"conversation_id"`
	ParentMessageID string    `json:"parent_message_id,omitempty"`
	Detail          *Detail   `json:"detail,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Detail carries backend metadata attached to an assistant message once
// its response has completed.
type Detail struct {
	ResponseID   string `json:"response_id,omitempty"`
	Model        string `json:"model,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Usage is the token accounting reported by the backend.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EffectiveRole returns the message role, treating an unset role as user.
func (m *ChatMessage) EffectiveRole() Role {
	if m.Role == "" {
		return RoleUser
	}
	return m.Role
}

// HasParent reports whether the message links to an earlier turn.
func (m *ChatMessage) HasParent() bool {
	return m.ParentMessageID != ""
}

// Clone returns a deep copy of the message.
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Detail != nil {
		d := *m.Detail
		if m.Detail.Usage != nil {
			u := *m.Detail.Usage
			d.Usage = &u
		}
		cp.Detail = &d
	}
	return &cp
}
