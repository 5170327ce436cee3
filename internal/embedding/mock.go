package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// MockEmbedder produces deterministic pseudo-embeddings derived from the text
// content. Identical texts embed identically, so similarity ranking behaves
// predictably in tests and in mock mode.
type MockEmbedder struct {
	dim int

	mu     sync.Mutex
	loaded bool
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{dim: dim}
}

func (e *MockEmbedder) LoadModel(_ context.Context, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

func (e *MockEmbedder) UnloadModel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

func (e *MockEmbedder) IsModelLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	loaded := e.loaded
	e.mu.Unlock()
	if !loaded {
		return nil, ErrModelNotLoaded
	}

	vec := make([]float32, e.dim)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(math.Sin(float64(seed % 9973)))
	}
	return vec, nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *MockEmbedder) CosineSimilarity(a, b []float32) float64 {
	return cosine(a, b)
}
