// Package brain bridges the turn pipeline with a text-generation provider.
// Adapters speak either an OpenAI-compatible HTTP endpoint (SSE streaming), a
// websocket relay, or a deterministic mock, behind one streaming contract.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TargetKind tags a model as local or remote. The pipeline pattern-matches on
// this once per turn: local targets skip all context retrieval.
type TargetKind string

const (
	TargetLocal  TargetKind = "local"
	TargetRemote TargetKind = "remote"
)

// ModelTarget identifies the model a turn is addressed to.
type ModelTarget struct {
	Kind     TargetKind `json:"kind"`
	Provider string     `json:"provider,omitempty"`
	ModelID  string     `json:"model_id"`
}

func LocalTarget(modelID string) ModelTarget {
	return ModelTarget{Kind: TargetLocal, ModelID: strings.TrimSpace(modelID)}
}

func RemoteTarget(provider, modelID string) ModelTarget {
	return ModelTarget{Kind: TargetRemote, Provider: strings.TrimSpace(provider), ModelID: strings.TrimSpace(modelID)}
}

func (t ModelTarget) IsRemote() bool { return t.Kind == TargetRemote }

func (t ModelTarget) IsZero() bool { return strings.TrimSpace(t.ModelID) == "" }

// ChatMessage is one prior turn handed to the provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling carries the per-turn sampling snapshot.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// Request is the normalized generation request.
type Request struct {
	Target       ModelTarget   `json:"target"`
	Messages     []ChatMessage `json:"messages"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	UserContext  string        `json:"user_context,omitempty"`
	Sampling     Sampling      `json:"sampling"`
}

// Response is the final text after streaming completes.
type Response struct {
	Text string `json:"text"`
}

// DeltaHandler receives streaming text fragments. Returning an error aborts
// the stream.
type DeltaHandler func(delta string) error

// Adapter is the generation collaborator consumed by the pipeline.
type Adapter interface {
	// StreamResponse issues a streaming call, invoking onDelta per fragment.
	StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
	// Complete issues the non-streaming single-shot variant used by the
	// empathy analyzer and the memory extractor.
	Complete(ctx context.Context, req Request) (Response, error)
}

// Config controls adapter construction.
type Config struct {
	Mode         string
	HTTPURL      string
	APIKey       string
	GatewayURL   string
	GatewayToken string
}

func NewAdapter(cfg Config) (Adapter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.GatewayURL) != "" {
			gw := NewGatewayAdapter(cfg.GatewayURL, cfg.GatewayToken)
			if strings.TrimSpace(cfg.HTTPURL) != "" {
				return NewFallbackAdapter(gw, NewHTTPAdapter(cfg.HTTPURL, cfg.APIKey)), nil
			}
			return gw, nil
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPAdapter(cfg.HTTPURL, cfg.APIKey), nil
		}
		return NewMockAdapter(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("brain HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL, cfg.APIKey), nil
	case "gateway":
		if strings.TrimSpace(cfg.GatewayURL) == "" {
			return nil, errors.New("brain gateway url is required for gateway mode")
		}
		return NewGatewayAdapter(cfg.GatewayURL, cfg.GatewayToken), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported brain adapter mode %q", cfg.Mode)
	}
}
