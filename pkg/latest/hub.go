package latest

import (
	"sync"
	"sync/atomic"
)

// Hub fans one producer out to any number of named subscribers, each with
// its own Slot. A slow subscriber only ever loses its own stale values; it
// cannot hold back the producer or the other subscribers.
//
// Published values are shared by reference, so T must be treated as
// immutable once published.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[string]*Slot[T]

	published atomic.Uint64
}

// NewHub returns a hub with no subscribers.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]*Slot[T])}
}

// Subscribe registers name and returns its slot. Subscribing an existing
// name replaces (and closes) the previous slot.
func (h *Hub[T]) Subscribe(name string) *Slot[T] {
	slot := NewSlot[T]()

	h.mu.Lock()
	old := h.subs[name]
	h.subs[name] = slot
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return slot
}

// Unsubscribe removes name and closes its slot. Unknown names are ignored.
func (h *Hub[T]) Unsubscribe(name string) {
	h.mu.Lock()
	slot, ok := h.subs[name]
	delete(h.subs, name)
	h.mu.Unlock()

	if ok {
		slot.Close()
	}
}

// Publish sends v to every subscriber. It never blocks.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, slot := range h.subs {
		slot.Send(v)
	}
	h.published.Add(1)
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Published returns the number of Publish calls so far.
func (h *Hub[T]) Published() uint64 {
	return h.published.Load()
}
