package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	docs   []Document
	chunks []Chunk
}

func NewInMemoryStore() *InMemoryStore { return &InMemoryStore{} }

func (s *InMemoryStore) CreateDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.docs = append(s.docs, doc)
	for i, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.DocumentID = doc.ID
		c.Index = i
		s.chunks = append(s.chunks, c)
	}
	return nil
}

func (s *InMemoryStore) ListDocuments(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

func (s *InMemoryStore) ListChunks(ctx context.Context) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *InMemoryStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	docs := s.docs[:0]
	for _, d := range s.docs {
		if d.ID == id {
			found = true
			continue
		}
		docs = append(docs, d)
	}
	if !found {
		return ErrNotFound
	}
	s.docs = docs
	chunks := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != id {
			chunks = append(chunks, c)
		}
	}
	s.chunks = chunks
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
