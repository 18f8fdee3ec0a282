// Package latest provides bounded, latest-wins hand-off between goroutines.
//
// A Slot holds at most one value. Senders never block: a new value replaces
// one that has not been received yet. Receivers never block either; they
// either take the current value or learn that none is pending. Staleness is
// the only failure mode, never backpressure on the producer.
package latest

import (
	"sync"
	"sync/atomic"
)

// Slot is a single-value mailbox with overwrite-on-send semantics.
type Slot[T any] struct {
	mu     sync.Mutex
	val    T
	full   bool
	closed bool

	ready chan struct{}
	drops atomic.Uint64
}

// NewSlot returns an empty slot.
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ready: make(chan struct{}, 1)}
}

// Send stores v, replacing any value that has not been received.
// It never blocks. Sends after Close are ignored.
func (s *Slot[T]) Send(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.full {
		s.drops.Add(1)
	}
	s.val = v
	s.full = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// TryRecv takes the pending value, if any. It never blocks.
func (s *Slot[T]) TryRecv() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if !s.full {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.full = false
	return v, true
}

// Ready signals that a value may be pending. A receive from Ready is only a
// hint; the value may already have been taken or replaced, so callers follow
// it with TryRecv.
func (s *Slot[T]) Ready() <-chan struct{} {
	return s.ready
}

// pending reports whether a value is waiting to be received.
func (s *Slot[T]) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// Drops returns how many values were overwritten before being received.
func (s *Slot[T]) Drops() uint64 {
	return s.drops.Load()
}

// Close discards any pending value and turns later sends into no-ops.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.closed = true
	s.val = zero
	s.full = false
}
