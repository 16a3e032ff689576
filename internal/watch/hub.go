// Package watch fans out change notifications keyed by an identifier.
// Notifications carry no payload; subscribers re-read whatever they watch.
package watch

import (
	"sync"
)

type Hub[K comparable] struct {
	mu   sync.Mutex
	subs map[K]map[*Subscription[K]]struct{}
}

func NewHub[K comparable]() *Hub[K] {
	return &Hub[K]{subs: make(map[K]map[*Subscription[K]]struct{})}
}

// Subscription receives a signal on C after each Notify for its key.
// Signals coalesce: C has capacity one.
type Subscription[K comparable] struct {
	C    <-chan struct{}
	c    chan struct{}
	key  K
	hub  *Hub[K]
	once sync.Once
}

func (h *Hub[K]) Subscribe(key K) *Subscription[K] {
	c := make(chan struct{}, 1)
	s := &Subscription[K]{C: c, c: c, key: key, hub: h}

	h.mu.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[*Subscription[K]]struct{})
		h.subs[key] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (s *Subscription[K]) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		if set, ok := h.subs[s.key]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.key)
			}
		}
		h.mu.Unlock()
	})
}

func (h *Hub[K]) Notify(key K) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[key] {
		select {
		case s.c <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions for key.
func (h *Hub[K]) Subscribers(key K) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
