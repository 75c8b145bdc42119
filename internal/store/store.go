// Package store persists conversations and their committed turns.
package store

import (
	"context"
	"errors"
	"time"

	"teca-cli/internal/turn"
)

// ErrNotFound is returned when a conversation id matches nothing.
var ErrNotFound = errors.New("not found")

// Role of a stored message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is one chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
}

// Entry is one stored message. Reply is set for assistant entries.
type Entry struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           string        `json:"role"`
	Content        string        `json:"content"`
	Reply          *turn.Message `json:"reply,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TurnParams is a completed turn to commit.
type TurnParams struct {
	ConversationID string
	City           string
	// UserText is what the user typed; for a "see more" turn it names the
	// follow-up rather than the generated prompt.
	UserText string
	Reply    turn.Message
}

// Store is the persistence used by conversations and the CLI.
type Store interface {
	// SaveTurn writes the user message and the reply in one transaction and
	// returns the reply with its assigned ids.
	SaveTurn(ctx context.Context, p TurnParams) (*turn.Message, error)

	// Conversations lists the most recently updated conversations.
	Conversations(ctx context.Context, limit int) ([]Conversation, error)

	// Conversation resolves an id or a unique id prefix.
	Conversation(ctx context.Context, id string) (*Conversation, error)

	// Messages returns a conversation's messages, oldest first.
	Messages(ctx context.Context, conversationID string) ([]Entry, error)

	Close() error
}
