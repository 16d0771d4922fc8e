package notify

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub hands alerts to the live SSE streams of a session. Slow subscribers
// lose alerts rather than block the sender.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan Alert]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Alert]struct{})}
}

func (h *Hub) Name() string { return "sse" }

// Subscribe returns a channel of alerts for sessionID and a function that
// must be called to release it.
func (h *Hub) Subscribe(sessionID string) (<-chan Alert, func()) {
	ch := make(chan Alert, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan Alert]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[sessionID][ch]; ok {
				delete(h.subs[sessionID], ch)
				if len(h.subs[sessionID]) == 0 {
					delete(h.subs, sessionID)
				}
				close(ch)
			}
		})
	}
}

func (h *Hub) Send(_ context.Context, a Alert) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[a.SessionID] {
		select {
		case ch <- a:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close ends every stream.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, id)
	}
}
