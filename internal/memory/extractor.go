package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/embedding"
	"github.com/akarpova/embra/internal/policy"
)

// DefaultSentinel is the model reply that means the exchange carried
// nothing worth remembering. Compared after trimming whitespace.
const DefaultSentinel = "No key information"

// Extractor distills a durable fact from a completed exchange and
// stores it with an embedding. It runs after a turn finishes and must
// never surface errors into the turn itself: every failure is logged
// and swallowed.
type Extractor struct {
	adapter  brain.Adapter
	embedder embedding.Embedder
	store    Store
	prompt   string
	sentinel string
	timeout  time.Duration
}

func NewExtractor(adapter brain.Adapter, embedder embedding.Embedder, store Store, prompt, sentinel string) *Extractor {
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	// The prompt's %s slot carries the sentinel, so the instructed no-op
	// reply is always the one compared against after the model answers.
	if strings.Contains(prompt, "%s") {
		prompt = fmt.Sprintf(prompt, sentinel)
	}
	return &Extractor{
		adapter:  adapter,
		embedder: embedder,
		store:    store,
		prompt:   prompt,
		sentinel: sentinel,
		timeout:  30 * time.Second,
	}
}

// ExtractAsync launches extraction in the background and returns
// immediately. The done channel closes when the attempt finishes,
// which tests use to avoid sleeping.
func (e *Extractor) ExtractAsync(target brain.ModelTarget, conversationID, userMessageID, userText, assistantText string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		e.extract(ctx, target, conversationID, userMessageID, userText, assistantText)
	}()
	return done
}

func (e *Extractor) extract(ctx context.Context, target brain.ModelTarget, conversationID, userMessageID, userText, assistantText string) {
	// Only the finished exchange goes to the model, not the full
	// history, so extraction stays cheap and focused.
	req := brain.Request{
		Target:       target,
		SystemPrompt: e.prompt,
		Messages: []brain.ChatMessage{
			{Role: "user", Content: userText},
			{Role: "assistant", Content: assistantText},
		},
		Sampling: brain.Sampling{Temperature: 0.2},
	}
	resp, err := e.adapter.Complete(ctx, req)
	if err != nil {
		log.Printf("memory extraction skipped: %v", err)
		return
	}
	fact := strings.TrimSpace(resp.Text)
	if fact == "" || fact == e.sentinel {
		return
	}
	fact, _ = policy.RedactPII(fact)

	vec, err := e.embedder.Embed(ctx, fact)
	if err != nil {
		log.Printf("memory embedding failed, storing without vector: %v", err)
		vec = nil
	}
	entry := Entry{
		Fact:            fact,
		ConversationID:  conversationID,
		SourceMessageID: userMessageID,
		Embedding:       vec,
	}
	if err := e.store.Create(ctx, entry); err != nil {
		log.Printf("memory store failed: %v", err)
	}
}
