// Package memory persists and retrieves long-term facts about the user.
// Facts are extracted from user messages after a completed turn and retrieved
// by embedding similarity before the next generation.
package memory

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("memory entry not found")

// Entry is one durable fact. Fact is a single third-person sentence.
type Entry struct {
	ID              string    `json:"id"`
	Fact            string    `json:"fact"`
	ConversationID  string    `json:"conversation_id"`
	SourceMessageID string    `json:"source_message_id"`
	Embedding       []float32 `json:"embedding,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store persists memory entries. Entries are independent of their source
// message: deleting the message keeps the fact.
type Store interface {
	Create(ctx context.Context, entry Entry) error
	// List returns all entries, oldest first, embeddings included.
	List(ctx context.Context) ([]Entry, error)
	Update(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
	Close() error
}
