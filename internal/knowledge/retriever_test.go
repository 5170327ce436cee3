package knowledge

import (
	"context"
	"testing"

	"github.com/akarpova/embra/internal/embedding"
)

type fixedEmbedder struct {
	embedding.MockEmbedder
	vec []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, nil
}

func TestFindRelevantChunksEmptyCorpus(t *testing.T) {
	r := NewRetriever(NewInMemoryStore(), &fixedEmbedder{vec: []float32{1}}, 3)
	got, err := r.FindRelevantChunks(context.Background(), "q")
	if err != nil {
		t.Fatalf("FindRelevantChunks failed: %v", err)
	}
	if got != nil {
		t.Fatalf("got = %v, want nil for empty corpus", got)
	}
}

func TestFindRelevantChunksRanksBestFirst(t *testing.T) {
	store := NewInMemoryStore()
	doc := Document{Title: "notes"}
	chunks := []Chunk{
		{Content: "gardening tips", Embedding: []float32{0, 1, 0}},
		{Content: "travel plans", Embedding: []float32{1, 0, 0}},
		{Content: "no vector yet"},
	}
	if err := store.CreateDocument(context.Background(), doc, chunks); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}

	r := NewRetriever(store, &fixedEmbedder{vec: []float32{1, 0, 0}}, 2)
	got, err := r.FindRelevantChunks(context.Background(), "where am I going?")
	if err != nil {
		t.Fatalf("FindRelevantChunks failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 (chunk without embedding skipped)", len(got))
	}
	if got[0].Content != "travel plans" {
		t.Errorf("got[0].Content = %q, want %q", got[0].Content, "travel plans")
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	store := NewInMemoryStore()
	doc := Document{ID: "d1", Title: "t"}
	if err := store.CreateDocument(context.Background(), doc, []Chunk{{Content: "a"}, {Content: "b"}}); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if err := store.DeleteDocument(context.Background(), "d1"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	chunks, _ := store.ListChunks(context.Background())
	if len(chunks) != 0 {
		t.Fatalf("len(chunks) = %d, want 0 after delete", len(chunks))
	}
	if err := store.DeleteDocument(context.Background(), "d1"); err != ErrNotFound {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}
