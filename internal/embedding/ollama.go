package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaEmbedder embeds text through a local Ollama server. The model is
// "loaded" by recording the descriptor and verifying it with a probe embed;
// Ollama itself pages the weights in on first use.
type OllamaEmbedder struct {
	endpoint string
	client   *http.Client

	mu    sync.Mutex
	model string
}

func NewOllamaEmbedder(endpoint string) *OllamaEmbedder {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEmbedder) LoadModel(ctx context.Context, descriptor string) error {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return fmt.Errorf("embedding model descriptor is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Probe with a tiny prompt so a missing model fails here instead of on
	// the first retrieval of a user turn.
	if _, err := e.embedLocked(ctx, descriptor, "ping"); err != nil {
		return fmt.Errorf("load embedding model %q: %w", descriptor, err)
	}
	e.model = descriptor
	return nil
}

func (e *OllamaEmbedder) UnloadModel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = ""
	return nil
}

func (e *OllamaEmbedder) IsModelLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model != ""
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == "" {
		return nil, ErrModelNotLoaded
	}
	return e.embedLocked(ctx, e.model, text)
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == "" {
		return nil, ErrModelNotLoaded
	}

	// Ollama has no batch endpoint; embed sequentially under the same hold of
	// the model lock so batches are not interleaved with load/unload.
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embedLocked(ctx, e.model, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) CosineSimilarity(a, b []float32) float64 {
	return cosine(a, b)
}

func (e *OllamaEmbedder) embedLocked(ctx context.Context, model, text string) ([]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("ollama embed status %d: %s", res.StatusCode, string(body))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}
	return out.Embedding, nil
}
