package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/embedding"
)

type stubBrain struct {
	reply   string
	err     error
	lastReq brain.Request
}

func (s *stubBrain) StreamResponse(ctx context.Context, req brain.Request, onDelta brain.DeltaHandler) (brain.Response, error) {
	return s.Complete(ctx, req)
}

func (s *stubBrain) Complete(ctx context.Context, req brain.Request) (brain.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return brain.Response{}, s.err
	}
	return brain.Response{Text: s.reply}, nil
}

func runExtraction(t *testing.T, adapter brain.Adapter) *InMemoryStore {
	t.Helper()
	store := NewInMemoryStore()
	emb := embedding.NewMockEmbedder(8)
	if err := emb.LoadModel(context.Background(), "mock"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	ex := NewExtractor(adapter, emb, store, "extract key facts", "")
	<-ex.ExtractAsync(brain.LocalTarget("test-model"), "conv1", "msg1", "I adopted a dog named Rex", "That is wonderful")
	return store
}

func TestExtractorStoresFact(t *testing.T) {
	store := runExtraction(t, &stubBrain{reply: "User adopted a dog named Rex"})
	entries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Fact != "User adopted a dog named Rex" {
		t.Errorf("Fact = %q", e.Fact)
	}
	if e.ConversationID != "conv1" || e.SourceMessageID != "msg1" {
		t.Errorf("provenance = (%q, %q), want (conv1, msg1)", e.ConversationID, e.SourceMessageID)
	}
	if len(e.Embedding) == 0 {
		t.Errorf("entry stored without embedding")
	}
}

func TestExtractorSentinelSkipsStore(t *testing.T) {
	store := runExtraction(t, &stubBrain{reply: "  No key information  "})
	entries, _ := store.List(context.Background())
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 for sentinel reply", len(entries))
	}
}

func TestExtractorConfiguredSentinelRendersAndSkipsStore(t *testing.T) {
	const sentinel = "Нет ключевой информации"
	stub := &stubBrain{reply: "  " + sentinel + "  "}
	store := NewInMemoryStore()
	emb := embedding.NewMockEmbedder(8)
	if err := emb.LoadModel(context.Background(), "mock"); err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	ex := NewExtractor(stub, emb, store,
		"If there is nothing worth remembering, reply exactly: %s", sentinel)
	<-ex.ExtractAsync(brain.LocalTarget("test-model"), "conv1", "msg1", "hello there", "hi")

	if !strings.Contains(stub.lastReq.SystemPrompt, sentinel) {
		t.Fatalf("SystemPrompt = %q, want the configured sentinel rendered in", stub.lastReq.SystemPrompt)
	}
	entries, _ := store.List(context.Background())
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 for the configured sentinel reply", len(entries))
	}
}

func TestExtractorSwallowsModelError(t *testing.T) {
	store := runExtraction(t, &stubBrain{err: errors.New("model down")})
	entries, _ := store.List(context.Background())
	if len(entries) != 0 {
		t.Fatalf("len(entries) = %d, want 0 when the model fails", len(entries))
	}
}

func TestExtractorRedactsPII(t *testing.T) {
	store := runExtraction(t, &stubBrain{reply: "User's email is jane@example.com"})
	entries, _ := store.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if got := entries[0].Fact; got == "User's email is jane@example.com" {
		t.Errorf("fact stored with raw email: %q", got)
	}
}
