// Package conversation owns the message model and its storage collaborator.
// Three backends share one contract: in-memory for tests and dev, sqlite for
// the default local-first install, postgres when a DATABASE_URL is provided.
package conversation

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

var ErrNotFound = errors.New("message not found")

// Message is one persisted conversation entry. Assistant content grows
// in memory during streaming and is written once on finalization; a message
// is immutable after that single finalizing write.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	ModelName       string    `json:"model_name,omitempty"`
	Temperature     float64   `json:"temperature,omitempty"`
	TopP            float64   `json:"top_p,omitempty"`
	MaxTokens       int       `json:"max_tokens,omitempty"`
	RequestSnapshot string    `json:"request_snapshot,omitempty"`
	IsLiked         bool      `json:"is_liked,omitempty"`
	IsError         bool      `json:"is_error,omitempty"`
	ErrorDetail     string    `json:"error_detail,omitempty"`
	QuotedMessageID string    `json:"quoted_message_id,omitempty"`
	QuotedText      string    `json:"quoted_text,omitempty"`
}

// Store persists conversation messages.
type Store interface {
	CreateMessage(ctx context.Context, msg Message) error
	UpdateMessage(ctx context.Context, msg Message) error
	DeleteMessage(ctx context.Context, id string) error
	GetMessage(ctx context.Context, id string) (Message, error)
	// ListMessages returns the conversation in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// DeleteEmptyAssistantMessages removes assistant messages with empty
	// content across all conversations. A crash between the placeholder
	// write and finalization leaves such a message behind; startup calls
	// this so it never survives a restart.
	DeleteEmptyAssistantMessages(ctx context.Context) (int, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	Close() error
}
