package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/retrieval"
)

// Retriever ranks stored memories against a query by embedding
// similarity. Entries younger than MinAgeDays are excluded so a fact
// extracted moments ago does not echo straight back into the next
// turn's context.
type Retriever struct {
	store      Store
	embedder   embedding.Embedder
	minAgeDays int
	limit      int
	now        func() time.Time
}

func NewRetriever(store Store, embedder embedding.Embedder, minAgeDays, limit int) *Retriever {
	if limit <= 0 {
		limit = 5
	}
	return &Retriever{
		store:      store,
		embedder:   embedder,
		minAgeDays: minAgeDays,
		limit:      limit,
		now:        time.Now,
	}
}

// FindRelevant embeds the query, filters out too-recent entries, and
// returns the top matches by cosine similarity in descending score
// order. An empty store yields nil, nil.
func (r *Retriever) FindRelevant(ctx context.Context, query string) ([]Entry, error) {
	entries, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	cutoff := r.now().Add(-time.Duration(r.minAgeDays) * 24 * time.Hour)
	eligible := entries[:0:0]
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		if r.minAgeDays > 0 && e.CreatedAt.After(cutoff) {
			continue
		}
		eligible = append(eligible, e)
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := make([]retrieval.Candidate, len(eligible))
	byID := make(map[string]Entry, len(eligible))
	for i, e := range eligible {
		candidates[i] = retrieval.Candidate{ID: e.ID, Vector: e.Embedding}
		byID[e.ID] = e
	}
	ranked, err := retrieval.Rank(qvec, candidates, r.limit)
	if err != nil {
		return nil, fmt.Errorf("rank memories: %w", err)
	}

	out := make([]Entry, 0, len(ranked))
	for _, res := range ranked {
		out = append(out, byID[res.ID])
	}
	return out, nil
}
