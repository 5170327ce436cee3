package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter provides deterministic replies when no provider is configured.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req)
	if onDelta != nil {
		// Stream word by word so downstream delta handling gets exercised.
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			if err := onDelta(w); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: text}, nil
}

func (a *MockAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}
	return Response{Text: buildMockReply(req)}, nil
}

func buildMockReply(req Request) string {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return "I am here with you."
	}
	if strings.TrimSpace(req.UserContext) != "" {
		return fmt.Sprintf("I hear you: %s. I am keeping what I know about you in mind.", last)
	}
	return fmt.Sprintf("I hear you: %s", last)
}
