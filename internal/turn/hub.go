package turn

import "sync"

const subscriberBuffer = 64

// hub fans turn events out to per-conversation subscribers. Publishing
// never blocks: a subscriber that falls behind loses events rather than
// stalling the turn.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[int]chan any
	next int
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan any)}
}

func (h *hub) Subscribe(conversationID string) (<-chan any, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan any, subscriberBuffer)
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[int]chan any)
	}
	h.subs[conversationID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if m := h.subs[conversationID]; m != nil {
			if c, ok := m[id]; ok {
				delete(m, id)
				close(c)
			}
			if len(m) == 0 {
				delete(h.subs, conversationID)
			}
		}
	}
	return ch, cancel
}

func (h *hub) Publish(conversationID string, event any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[conversationID] {
		select {
		case ch <- event:
		default:
		}
	}
}
