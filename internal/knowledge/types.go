// Package knowledge stores user-provided documents split into
// embedded chunks, and retrieves the chunks most relevant to a query.
package knowledge

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("knowledge: not found")

// Document is a user-supplied source text. The text itself lives in
// its chunks.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk is an embeddable slice of a document. Index preserves the
// original order inside the document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

type Store interface {
	CreateDocument(ctx context.Context, doc Document, chunks []Chunk) error
	ListDocuments(ctx context.Context) ([]Document, error)
	ListChunks(ctx context.Context) ([]Chunk, error)
	DeleteDocument(ctx context.Context, id string) error
	Close() error
}
