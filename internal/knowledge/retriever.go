package knowledge

import (
	"context"
	"fmt"

	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/retrieval"
)

// Retriever finds the document chunks most similar to a query.
type Retriever struct {
	store    Store
	embedder embedding.Embedder
	topK     int
}

func NewRetriever(store Store, embedder embedding.Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{store: store, embedder: embedder, topK: topK}
}

// FindRelevantChunks returns up to topK chunks ranked by cosine
// similarity, best first. An empty corpus yields nil, nil without
// touching the embedder.
func (r *Retriever) FindRelevantChunks(ctx context.Context, query string) ([]Chunk, error) {
	chunks, err := r.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	eligible := chunks[:0:0]
	for _, c := range chunks {
		if len(c.Embedding) > 0 {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := make([]retrieval.Candidate, len(eligible))
	byID := make(map[string]Chunk, len(eligible))
	for i, c := range eligible {
		candidates[i] = retrieval.Candidate{ID: c.ID, Vector: c.Embedding}
		byID[c.ID] = c
	}
	ranked, err := retrieval.Rank(qvec, candidates, r.topK)
	if err != nil {
		return nil, fmt.Errorf("rank chunks: %w", err)
	}

	out := make([]Chunk, 0, len(ranked))
	for _, res := range ranked {
		out = append(out, byID[res.ID])
	}
	return out, nil
}
