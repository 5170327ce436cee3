package memory

import (
	"context"
	"testing"
	"time"

	"github.com/akarpova/embra/internal/embedding"
)

func seedStore(t *testing.T, now time.Time) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	entries := []Entry{
		{ID: "a", Fact: "likes hiking", Embedding: []float32{1, 0, 0}, CreatedAt: now.AddDate(0, 0, -10)},
		{ID: "b", Fact: "owns a cat", Embedding: []float32{0, 1, 0}, CreatedAt: now.AddDate(0, 0, -10)},
		{ID: "c", Fact: "too new", Embedding: []float32{1, 0, 0}, CreatedAt: now},
	}
	for _, e := range entries {
		if err := store.Create(context.Background(), e); err != nil {
			t.Fatalf("Create(%s) failed: %v", e.ID, err)
		}
	}
	return store
}

type fixedEmbedder struct {
	embedding.MockEmbedder
	vec []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func TestFindRelevantFiltersAndRanks(t *testing.T) {
	now := time.Now()
	store := seedStore(t, now)
	emb := &fixedEmbedder{vec: []float32{1, 0, 0}}

	r := NewRetriever(store, emb, 1, 5)
	r.now = func() time.Time { return now }

	got, err := r.FindRelevant(context.Background(), "what do I enjoy?")
	if err != nil {
		t.Fatalf("FindRelevant failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (entry c is under the min age)", len(got))
	}
	if got[0].ID != "a" {
		t.Errorf("got[0].ID = %q, want %q (best cosine match first)", got[0].ID, "a")
	}
}

func TestFindRelevantLimit(t *testing.T) {
	now := time.Now()
	store := seedStore(t, now)
	emb := &fixedEmbedder{vec: []float32{1, 1, 0}}

	r := NewRetriever(store, emb, 1, 1)
	r.now = func() time.Time { return now }

	got, err := r.FindRelevant(context.Background(), "q")
	if err != nil {
		t.Fatalf("FindRelevant failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
}

func TestFindRelevantEmptyStore(t *testing.T) {
	r := NewRetriever(NewInMemoryStore(), &fixedEmbedder{vec: []float32{1}}, 0, 5)
	got, err := r.FindRelevant(context.Background(), "q")
	if err != nil {
		t.Fatalf("FindRelevant failed: %v", err)
	}
	if got != nil {
		t.Fatalf("got = %v, want nil for empty store", got)
	}
}
