package application

import (
	"sync"

	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

const subscriberBuffer = 8

// Hub fans state snapshots out to the subscribers of each session.
// Publish never blocks: a subscriber that falls behind loses its oldest
// buffered snapshot, which is safe because every snapshot is complete.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.OrderState]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.OrderState]struct{})}
}

func (h *Hub) Subscribe(sessionID string) (<-chan domain.OrderState, func()) {
	ch := make(chan domain.OrderState, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan domain.OrderState]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.remove(sessionID, ch)
		})
	}
}

func (h *Hub) Publish(sessionID string, s domain.OrderState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[sessionID] {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Close ends every subscription of a session.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[sessionID] {
		h.remove(sessionID, ch)
	}
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// remove requires h.mu.
func (h *Hub) remove(sessionID string, ch chan domain.OrderState) {
	set, ok := h.subs[sessionID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, sessionID)
	}
}
