package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps messages in process memory, for tests and dev runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string]Message
	order    map[string][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string]Message),
		order:    make(map[string][]string),
	}
}

func (s *InMemoryStore) CreateMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ID] = msg
	s.order[msg.ConversationID] = append(s.order[msg.ConversationID], msg.ID)
	return nil
}

func (s *InMemoryStore) UpdateMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	s.messages[msg.ID] = msg
	return nil
}

func (s *InMemoryStore) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.messages, id)
	ids := s.order[msg.ConversationID]
	for i, mid := range ids {
		if mid == id {
			s.order[msg.ConversationID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) GetMessage(_ context.Context, id string) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (s *InMemoryStore) ListMessages(_ context.Context, conversationID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[conversationID]
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		if msg, ok := s.messages[id]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteEmptyAssistantMessages(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for id, msg := range s.messages {
		if msg.Role != RoleAssistant || msg.Content != "" {
			continue
		}
		delete(s.messages, id)
		ids := s.order[msg.ConversationID]
		for i, mid := range ids {
			if mid == id {
				s.order[msg.ConversationID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		n++
	}
	return n, nil
}

func (s *InMemoryStore) DeleteConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order[conversationID] {
		delete(s.messages, id)
	}
	delete(s.order, conversationID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
