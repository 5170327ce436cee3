package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akarpova/embra/internal/reliability"
)

const (
	httpMaxAttempts  = 3
	httpBackoffBase  = 300 * time.Millisecond
	httpBackoffCap   = 2 * time.Second
	httpStreamBufCap = 4 * 1024 * 1024
)

// HTTPAdapter speaks an OpenAI-compatible chat completions endpoint. Local
// runtimes (llama-server, Ollama, LM Studio) and remote providers expose the
// same surface, so one adapter serves both target kinds.
type HTTPAdapter struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPAdapter(url, apiKey string) *HTTPAdapter {
	return &HTTPAdapter{
		url:    strings.TrimRight(strings.TrimSpace(url), "/"),
		apiKey: strings.TrimSpace(apiKey),
		client: &http.Client{
			// Generous: streams stay open for the whole generation.
			Timeout: 5 * time.Minute,
		},
	}
}

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []chatWireMessage    `json:"messages"`
	Stream      bool                 `json:"stream"`
	Temperature float64              `json:"temperature,omitempty"`
	TopP        float64              `json:"top_p,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

type chatWireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *HTTPAdapter) StreamResponse(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	return a.call(ctx, req, true, onDelta)
}

func (a *HTTPAdapter) Complete(ctx context.Context, req Request) (Response, error) {
	return a.call(ctx, req, false, nil)
}

func (a *HTTPAdapter) call(ctx context.Context, req Request, stream bool, onDelta DeltaHandler) (Response, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       req.Target.ModelID,
		Messages:    wireMessages(req),
		Stream:      stream,
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		MaxTokens:   req.Sampling.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	// Retry only transient statuses, and only before the first delta reached
	// the caller; a partially delivered stream must fail the turn instead of
	// silently restarting it.
	var lastErr error
	for attempt := 0; attempt < httpMaxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, httpBackoffBase, httpBackoffCap)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		res, retryable, err := a.doRequest(ctx, payload)
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return Response{}, err
		}

		resp, delivered, err := a.consumeResponse(res, stream, onDelta)
		if err != nil {
			lastErr = err
			if !delivered && retryableStreamErr(err) {
				continue
			}
			return Response{}, err
		}
		return resp, nil
	}
	return Response{}, fmt.Errorf("generation failed after %d attempts: %w", httpMaxAttempts, lastErr)
}

func (a *HTTPAdapter) doRequest(ctx context.Context, payload []byte) (*http.Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	res, err := a.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("send request: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		err := fmt.Errorf("provider status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		return nil, reliability.IsRetryableHTTPStatus(res.StatusCode), err
	}
	return res, false, nil
}

// consumeResponse drains the body. delivered reports whether any delta was
// handed to the caller, which disables retry.
func (a *HTTPAdapter) consumeResponse(res *http.Response, stream bool, onDelta DeltaHandler) (Response, bool, error) {
	defer res.Body.Close()

	if stream {
		return a.consumeSSE(res.Body, onDelta)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, false, fmt.Errorf("read response: %w", err)
	}
	var chunk chatCompletionChunk
	if err := json.Unmarshal(body, &chunk); err != nil {
		return Response{}, false, fmt.Errorf("decode response: %w", err)
	}
	return Response{Text: chunkText(chunk)}, false, nil
}

func (a *HTTPAdapter) consumeSSE(body io.Reader, onDelta DeltaHandler) (Response, bool, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), httpStreamBufCap)

	var out strings.Builder
	delivered := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			// Tolerate non-JSON noise between events.
			continue
		}
		delta := chunkText(chunk)
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Response{}, delivered, err
			}
			delivered = true
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, delivered, fmt.Errorf("stream read: %w", err)
	}
	return Response{Text: out.String()}, delivered, nil
}

func wireMessages(req Request) []chatWireMessage {
	msgs := make([]chatWireMessage, 0, len(req.Messages)+2)
	if s := strings.TrimSpace(req.SystemPrompt); s != "" {
		msgs = append(msgs, chatWireMessage{Role: "system", Content: s})
	}
	if c := strings.TrimSpace(req.UserContext); c != "" {
		msgs = append(msgs, chatWireMessage{Role: "system", Content: c})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, chatWireMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func chunkText(chunk chatCompletionChunk) string {
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			return choice.Delta.Content
		}
		if choice.Message.Content != "" {
			return choice.Message.Content
		}
	}
	return ""
}

func retryableStreamErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "send request") || strings.Contains(msg, "connection reset")
}
