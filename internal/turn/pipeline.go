// Package turn drives one conversation turn end to end: persist the user
// message, enrich the prompt from memory, documents and the empathy signal,
// stream the generation, and finalize durable state. A failed turn becomes a
// transient PendingError awaiting an explicit retry or cancel, never a
// half-written message in history.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpova/embra/internal/brain"
	"github.com/akarpova/embra/internal/conversation"
	"github.com/akarpova/embra/internal/empathy"
	"github.com/akarpova/embra/internal/knowledge"
	"github.com/akarpova/embra/internal/memory"
	"github.com/akarpova/embra/internal/observability"
	"github.com/akarpova/embra/internal/policy"
	"github.com/akarpova/embra/internal/prompt"
	"github.com/akarpova/embra/internal/protocol"
)

// ErrNoPendingError means retry/cancel was requested but the
// conversation has no failed turn awaiting a decision.
var ErrNoPendingError = errors.New("no pending turn error")

// State names published with TurnState events.
const (
	StateSending    = "sending"
	StateEnriching  = "enriching"
	StateStreaming  = "streaming"
	StateFinalizing = "finalizing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Options is the immutable per-process feature snapshot. Gates are read
// once at the top of enrichment, not re-checked per stage.
type Options struct {
	EmpathyEnabled    bool
	MemoryEnabled     bool
	RAGEnabled        bool
	HistoryLimitPairs int
	Sampling          brain.Sampling
	// BaseContext is the user's standing personal context, included for
	// remote targets when non-blank.
	BaseContext    string
	StreamMinChars int
}

// Pipeline owns turn execution for all conversations. One turn runs at a
// time per conversation; independent conversations proceed concurrently.
type Pipeline struct {
	store     conversation.Store
	runtime   *conversation.Manager
	adapter   brain.Adapter
	templates prompt.Templates
	assembler *prompt.Assembler
	empathy   *empathy.Extractor
	memories  *memory.Retriever
	documents *knowledge.Retriever
	extractor *memory.Extractor
	metrics   *observability.Metrics
	opts      Options
	hub       *hub

	mu             sync.Mutex
	lastExtraction <-chan struct{}
}

func NewPipeline(
	store conversation.Store,
	runtime *conversation.Manager,
	adapter brain.Adapter,
	templates prompt.Templates,
	memories *memory.Retriever,
	documents *knowledge.Retriever,
	extractor *memory.Extractor,
	metrics *observability.Metrics,
	opts Options,
) *Pipeline {
	p := &Pipeline{
		store:     store,
		runtime:   runtime,
		adapter:   adapter,
		templates: templates,
		assembler: prompt.NewAssembler(templates),
		memories:  memories,
		documents: documents,
		extractor: extractor,
		metrics:   metrics,
		opts:      opts,
		hub:       newHub(),
	}
	if opts.EmpathyEnabled {
		p.empathy = empathy.NewExtractor(adapter, templates.EmpathyAnalysisPrompt, templates.EmpathyFocusTemplate)
	}
	return p
}

// Subscribe registers an observer for one conversation's turn events.
func (p *Pipeline) Subscribe(conversationID string) (<-chan any, func()) {
	return p.hub.Subscribe(conversationID)
}

// ExtractionDone reports the completion channel of the most recently
// launched memory extraction, or nil when none has run.
func (p *Pipeline) ExtractionDone() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastExtraction
}

// Send runs one full turn. Blank input or a missing target is a logged
// no-op, not an error. A generation failure is recorded as the
// conversation's PendingError and also returned.
func (p *Pipeline) Send(ctx context.Context, conversationID string, target brain.ModelTarget, input string) error {
	input = strings.TrimSpace(input)
	if input == "" || target.IsZero() {
		log.Printf("turn send ignored: empty input or no model selected (conversation %s)", conversationID)
		p.metrics.TurnEvents.WithLabelValues("send_noop").Inc()
		return nil
	}
	// PII in user-authored text never reaches durable storage. The
	// redacted form is the turn's canonical input: history, events,
	// retrieval and retries all see the same text.
	input, _ = policy.RedactPII(input)

	turnID := uuid.NewString()
	if err := p.runtime.StartTurn(conversationID, turnID); err != nil {
		return err
	}
	defer p.runtime.EndTurn(conversationID, turnID)

	p.metrics.ActiveTurns.Inc()
	defer p.metrics.ActiveTurns.Dec()
	p.metrics.TurnEvents.WithLabelValues("send").Inc()

	start := time.Now()
	p.publishState(conversationID, turnID, StateSending)

	// The staged reply-quote is consumed by this message even if the
	// turn later fails.
	var quotedID, quotedText string
	if quote, ok := p.runtime.TakeQuote(conversationID); ok {
		quotedID, quotedText = quote.MessageID, quote.Text
	}
	userMsg := conversation.Message{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		Role:            conversation.RoleUser,
		Content:         input,
		CreatedAt:       time.Now().UTC(),
		QuotedMessageID: quotedID,
		QuotedText:      quotedText,
	}
	if err := p.store.CreateMessage(ctx, userMsg); err != nil {
		return p.fail(conversationID, turnID, target, userMsg.ID, input, "", fmt.Errorf("persist user message: %w", err))
	}
	p.metrics.ObserveTurnStage("send_to_user_persisted", time.Since(start))
	p.hub.Publish(conversationID, protocol.UserMessageCreated{
		Type:           protocol.TypeUserMessageCreated,
		ConversationID: conversationID,
		TurnID:         turnID,
		MessageID:      userMsg.ID,
		Content:        input,
	})

	p.publishState(conversationID, turnID, StateEnriching)
	systemPrompt, userContext := p.enrich(ctx, target, input, quotedText)
	p.metrics.ObserveTurnStage("send_to_context_ready", time.Since(start))

	p.publishState(conversationID, turnID, StateStreaming)
	placeholder := conversation.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           conversation.RoleAssistant,
		Content:        "",
		CreatedAt:      time.Now().UTC(),
		ModelName:      target.ModelID,
		Temperature:    p.opts.Sampling.Temperature,
		TopP:           p.opts.Sampling.TopP,
		MaxTokens:      p.opts.Sampling.MaxTokens,
	}
	if err := p.store.CreateMessage(ctx, placeholder); err != nil {
		return p.fail(conversationID, turnID, target, userMsg.ID, input, "", fmt.Errorf("persist assistant placeholder: %w", err))
	}
	p.metrics.ObserveTurnStage("send_to_placeholder", time.Since(start))

	history, err := p.historyForRequest(ctx, conversationID, placeholder.ID)
	if err != nil {
		return p.fail(conversationID, turnID, target, userMsg.ID, input, placeholder.ID, err)
	}

	var (
		accumulator  strings.Builder
		coalescer    = newDeltaCoalescer(p.opts.StreamMinChars)
		seq          int
		firstDeltaAt time.Time
	)
	publishChunks := func(chunks []string) {
		for _, chunk := range chunks {
			seq++
			p.hub.Publish(conversationID, protocol.AssistantTextDelta{
				Type:           protocol.TypeAssistantTextDelta,
				ConversationID: conversationID,
				TurnID:         turnID,
				MessageID:      placeholder.ID,
				Seq:            seq,
				TextDelta:      chunk,
			})
		}
	}
	resp, err := p.adapter.StreamResponse(ctx, brain.Request{
		Target:       target,
		Messages:     history,
		SystemPrompt: systemPrompt,
		UserContext:  userContext,
		Sampling:     p.opts.Sampling,
	}, func(delta string) error {
		if firstDeltaAt.IsZero() && strings.TrimSpace(delta) != "" {
			firstDeltaAt = time.Now()
			p.metrics.ObserveFirstDeltaLatency(firstDeltaAt.Sub(start))
			p.metrics.ObserveTurnStage("send_to_first_delta", firstDeltaAt.Sub(start))
		}
		accumulator.WriteString(delta)
		publishChunks(coalescer.Consume(delta))
		return nil
	})
	if err != nil {
		return p.fail(conversationID, turnID, target, userMsg.ID, input, placeholder.ID, fmt.Errorf("generation: %w", err))
	}
	publishChunks(coalescer.Finalize())

	p.publishState(conversationID, turnID, StateFinalizing)
	final := strings.TrimSpace(resp.Text)
	if final == "" {
		final = strings.TrimSpace(accumulator.String())
	}
	placeholder.Content = final
	if err := p.store.UpdateMessage(ctx, placeholder); err != nil {
		return p.fail(conversationID, turnID, target, userMsg.ID, input, placeholder.ID, fmt.Errorf("finalize assistant message: %w", err))
	}

	p.hub.Publish(conversationID, protocol.AssistantFinal{
		Type:           protocol.TypeAssistantFinal,
		ConversationID: conversationID,
		TurnID:         turnID,
		MessageID:      placeholder.ID,
		Content:        final,
		ModelName:      target.ModelID,
	})
	p.hub.Publish(conversationID, protocol.SystemEvent{
		Type:           protocol.TypeSystemEvent,
		ConversationID: conversationID,
		Code:           "scroll_to_latest",
	})

	// Detached: extraction may still run when the next turn starts. It
	// talks only to durable storage, never to turn state.
	if p.opts.MemoryEnabled && p.extractor != nil {
		done := p.extractor.ExtractAsync(target, conversationID, userMsg.ID, input, final)
		p.mu.Lock()
		p.lastExtraction = done
		p.mu.Unlock()
	}

	p.publishState(conversationID, turnID, StateCompleted)
	p.metrics.TurnEvents.WithLabelValues("completed").Inc()
	p.metrics.ObserveTurnStage("turn_total", time.Since(start))
	return nil
}

// Retry discards the failed turn's messages and resends the original
// text as a fresh turn against the given target.
func (p *Pipeline) Retry(ctx context.Context, conversationID string, target brain.ModelTarget) error {
	pending, ok := p.runtime.TakePendingError(conversationID)
	if !ok {
		return ErrNoPendingError
	}
	if err := p.cleanupPending(ctx, pending); err != nil {
		return err
	}
	p.metrics.TurnEvents.WithLabelValues("retry").Inc()
	return p.Send(ctx, conversationID, target, pending.UserMessageContent)
}

// Cancel discards the failed turn's messages and returns the original
// user text so the caller can hand it to the clipboard boundary.
func (p *Pipeline) Cancel(ctx context.Context, conversationID string) (string, error) {
	pending, ok := p.runtime.TakePendingError(conversationID)
	if !ok {
		return "", ErrNoPendingError
	}
	if err := p.cleanupPending(ctx, pending); err != nil {
		return "", err
	}
	p.metrics.TurnEvents.WithLabelValues("cancel").Inc()
	return pending.UserMessageContent, nil
}

// Regenerate re-runs the turn that produced the given assistant message.
// The message immediately preceding it must be a user message; anything
// else is a logged no-op.
func (p *Pipeline) Regenerate(ctx context.Context, conversationID, assistantMessageID string, target brain.ModelTarget) error {
	msgs, err := p.store.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}
	idx := -1
	for i, m := range msgs {
		if m.ID == assistantMessageID {
			idx = i
			break
		}
	}
	if idx <= 0 || msgs[idx].Role != conversation.RoleAssistant || msgs[idx-1].Role != conversation.RoleUser {
		log.Printf("regenerate ignored: message %s has no preceding user message", assistantMessageID)
		p.metrics.TurnEvents.WithLabelValues("regenerate_noop").Inc()
		return nil
	}
	userMsg := msgs[idx-1]
	if err := p.store.DeleteMessage(ctx, assistantMessageID); err != nil {
		return fmt.Errorf("delete assistant message: %w", err)
	}
	if err := p.store.DeleteMessage(ctx, userMsg.ID); err != nil {
		return fmt.Errorf("delete user message: %w", err)
	}
	p.metrics.TurnEvents.WithLabelValues("regenerate").Inc()
	return p.Send(ctx, conversationID, target, userMsg.Content)
}

// enrich builds the system prompt and user context for the request.
// Local targets get the minimal prompt and zero retrieval calls.
func (p *Pipeline) enrich(ctx context.Context, target brain.ModelTarget, input, quotedText string) (systemPrompt, userContext string) {
	if !target.IsRemote() {
		return p.templates.LocalSystemPrompt, ""
	}

	in := prompt.Input{
		BaseContext: p.opts.BaseContext,
		QuotedText:  quotedText,
		Now:         time.Now(),
	}
	if p.opts.EmpathyEnabled && p.empathy != nil {
		in.EmpathyFocus = p.empathy.ExtractFocus(ctx, target, input)
		outcome := "hit"
		if in.EmpathyFocus == "" {
			outcome = "empty"
		} else {
			p.metrics.ObserveTurnIndicator("empathy_focus")
		}
		p.metrics.RetrievalEvents.WithLabelValues("empathy", outcome).Inc()
	}
	if p.opts.MemoryEnabled && p.memories != nil {
		entries, err := p.memories.FindRelevant(ctx, input)
		if err != nil {
			log.Printf("memory retrieval degraded: %v", err)
			p.metrics.RetrievalEvents.WithLabelValues("memory", "error").Inc()
		} else {
			in.Memories = entries
			if len(entries) > 0 {
				p.metrics.ObserveTurnIndicator("memory_recalled")
			}
			p.metrics.RetrievalEvents.WithLabelValues("memory", "ok").Inc()
		}
	}
	if p.opts.RAGEnabled && p.documents != nil {
		chunks, err := p.documents.FindRelevantChunks(ctx, input)
		if err != nil {
			log.Printf("document retrieval degraded: %v", err)
			p.metrics.RetrievalEvents.WithLabelValues("documents", "error").Inc()
		} else {
			in.Chunks = chunks
			if len(chunks) > 0 {
				p.metrics.ObserveTurnIndicator("documents_recalled")
			}
			p.metrics.RetrievalEvents.WithLabelValues("documents", "ok").Inc()
		}
	}
	return p.templates.RemoteSystemPrompt, p.assembler.Assemble(in)
}

// historyForRequest returns the provider-facing history: the stored
// conversation without the placeholder and without error-flagged
// messages, truncated to the configured pair window.
func (p *Pipeline) historyForRequest(ctx context.Context, conversationID, placeholderID string) ([]brain.ChatMessage, error) {
	msgs, err := p.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	filtered := msgs[:0:0]
	for _, m := range msgs {
		if m.ID == placeholderID || m.IsError {
			continue
		}
		filtered = append(filtered, m)
	}
	window := conversation.TailWindow(filtered, p.opts.HistoryLimitPairs)
	out := make([]brain.ChatMessage, 0, len(window))
	for _, m := range window {
		out = append(out, brain.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out, nil
}

func (p *Pipeline) fail(conversationID, turnID string, target brain.ModelTarget, userMessageID, userContent, assistantMessageID string, err error) error {
	log.Printf("turn %s failed: %v", turnID, err)
	p.metrics.TurnEvents.WithLabelValues("failed").Inc()
	p.metrics.ProviderErrors.WithLabelValues(target.Provider, "turn_failed").Inc()

	pending := conversation.PendingError{
		ErrorMessage:       err.Error(),
		UserMessageID:      userMessageID,
		UserMessageContent: userContent,
		AssistantMessageID: assistantMessageID,
		ModelName:          target.ModelID,
	}
	p.runtime.SetPendingError(conversationID, pending)
	p.hub.Publish(conversationID, protocol.TurnFailed{
		Type:               protocol.TypeTurnFailed,
		ConversationID:     conversationID,
		TurnID:             turnID,
		ErrorMessage:       pending.ErrorMessage,
		UserMessageID:      pending.UserMessageID,
		UserMessageContent: pending.UserMessageContent,
		AssistantMessageID: pending.AssistantMessageID,
		ModelName:          pending.ModelName,
	})
	p.publishState(conversationID, turnID, StateFailed)
	return err
}

func (p *Pipeline) cleanupPending(ctx context.Context, pending conversation.PendingError) error {
	if pending.AssistantMessageID != "" {
		if err := p.store.DeleteMessage(ctx, pending.AssistantMessageID); err != nil && !errors.Is(err, conversation.ErrNotFound) {
			return fmt.Errorf("delete placeholder: %w", err)
		}
	}
	if pending.UserMessageID != "" {
		if err := p.store.DeleteMessage(ctx, pending.UserMessageID); err != nil && !errors.Is(err, conversation.ErrNotFound) {
			return fmt.Errorf("delete user message: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) publishState(conversationID, turnID, state string) {
	p.hub.Publish(conversationID, protocol.TurnState{
		Type:           protocol.TypeTurnState,
		ConversationID: conversationID,
		TurnID:         turnID,
		State:          state,
	})
}
