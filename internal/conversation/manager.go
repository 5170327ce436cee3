package conversation

import (
	"errors"
	"sync"
	"time"
)

var ErrTurnActive = errors.New("conversation already has an active turn")

// PendingError is the recoverable failure state of a turn, held until the
// user decides to retry or cancel. It is deliberately never written to
// durable storage: a restart discards it, and startup reconciliation removes
// any orphaned placeholder it referenced.
type PendingError struct {
	ErrorMessage       string
	UserMessageID      string
	UserMessageContent string
	// AssistantMessageID is set only if the placeholder assistant message
	// reached storage before the failure.
	AssistantMessageID string
	ModelName          string
}

// PendingQuote is a reply-quote staged for the next outgoing message.
type PendingQuote struct {
	MessageID string
	Text      string
}

// RuntimeState is the transient per-conversation state snapshot.
type RuntimeState struct {
	ConversationID string
	ActiveTurnID   string
	Pending        *PendingError
	Quote          *PendingQuote
	DraftInput     string
	LastActivityAt time.Time
}

// Manager owns all transient conversation state. It is the single writer;
// callers receive copies and subscribe to pipeline events for changes.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*RuntimeState
}

func NewManager() *Manager {
	return &Manager{states: make(map[string]*RuntimeState)}
}

func (m *Manager) stateLocked(conversationID string) *RuntimeState {
	s, ok := m.states[conversationID]
	if !ok {
		s = &RuntimeState{ConversationID: conversationID}
		m.states[conversationID] = s
	}
	return s
}

// Get returns a copy of the conversation's transient state.
func (m *Manager) Get(conversationID string) RuntimeState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[conversationID]
	if !ok {
		return RuntimeState{ConversationID: conversationID}
	}
	out := *s
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	if s.Quote != nil {
		q := *s.Quote
		out.Quote = &q
	}
	return out
}

// StartTurn claims the conversation for one turn. Turns are strictly
// sequential per conversation.
func (m *Manager) StartTurn(conversationID, turnID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	if s.ActiveTurnID != "" {
		return ErrTurnActive
	}
	s.ActiveTurnID = turnID
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) EndTurn(conversationID, turnID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	if s.ActiveTurnID == turnID {
		s.ActiveTurnID = ""
	}
	s.LastActivityAt = time.Now().UTC()
}

func (m *Manager) SetPendingError(conversationID string, pending PendingError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	s.Pending = &pending
	s.LastActivityAt = time.Now().UTC()
}

// TakePendingError returns and clears the pending error, if any.
func (m *Manager) TakePendingError(conversationID string) (PendingError, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	if s.Pending == nil {
		return PendingError{}, false
	}
	p := *s.Pending
	s.Pending = nil
	return p, true
}

func (m *Manager) PendingError(conversationID string) (PendingError, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[conversationID]
	if !ok || s.Pending == nil {
		return PendingError{}, false
	}
	return *s.Pending, true
}

func (m *Manager) SetQuote(conversationID string, quote PendingQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateLocked(conversationID).Quote = &quote
}

// TakeQuote returns and clears the staged reply-quote. The quote is consumed
// by the user message that carries it.
func (m *Manager) TakeQuote(conversationID string) (PendingQuote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	if s.Quote == nil {
		return PendingQuote{}, false
	}
	q := *s.Quote
	s.Quote = nil
	return q, true
}

func (m *Manager) SetDraftInput(conversationID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateLocked(conversationID).DraftInput = text
}

func (m *Manager) TakeDraftInput(conversationID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stateLocked(conversationID)
	draft := s.DraftInput
	s.DraftInput = ""
	return draft
}
