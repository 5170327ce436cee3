// Package embedding declares the embedding-model collaborator contract and
// provides an Ollama-backed implementation plus a deterministic mock.
//
// The embedding model handle is a single process-wide resource: load, unload
// and embed calls are serialized by the implementation so only one operation
// is in flight at a time.
package embedding

import (
	"context"
	"errors"

	"github.com/akarpova/embra/internal/retrieval"
)

// ErrModelNotLoaded is returned by Embed/EmbedBatch before LoadModel succeeds.
// Retrieval callers treat it as "retrieval unavailable", not a turn failure.
var ErrModelNotLoaded = errors.New("embedding model not loaded")

// Embedder is the embedding collaborator consumed by retrieval.
type Embedder interface {
	LoadModel(ctx context.Context, descriptor string) error
	UnloadModel() error
	IsModelLoaded() bool
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	CosineSimilarity(a, b []float32) float64
}

// cosine is shared by implementations so the collaborator contract and the
// pure ranker agree on similarity semantics.
func cosine(a, b []float32) float64 {
	return retrieval.Cosine(a, b)
}
