// Package notify fans values out to subscriber channels without ever blocking
// the publisher. A subscriber whose channel is full misses the value and the
// drop is counted.
package notify

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrClosed             = errors.New("notify: hub is closed")
	ErrSubscriberExists   = errors.New("notify: subscriber already exists")
	ErrSubscriberNotFound = errors.New("notify: subscriber not found")
	ErrNilChannel         = errors.New("notify: channel cannot be nil")
)

// Stats counts deliveries to one subscriber.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber[T any] struct {
	ch      chan<- T
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Hub delivers published values to subscribers.
type Hub[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber[T]
	published   atomic.Uint64
	closed      bool
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subscribers: make(map[string]*subscriber[T])}
}

// Subscribe registers ch under id. The hub never closes ch.
func (h *Hub[T]) Subscribe(id string, ch chan<- T) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if _, exists := h.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	if ch == nil {
		return ErrNilChannel
	}

	h.subscribers[id] = &subscriber[T]{ch: ch}
	return nil
}

// Unsubscribe removes the subscriber id.
func (h *Hub[T]) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(h.subscribers, id)
	return nil
}

// Publish offers v to every subscriber without blocking.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	h.published.Add(1)

	for _, s := range h.subscribers {
		select {
		case s.ch <- v:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

// Stats returns delivery counters for id.
func (h *Hub[T]) Stats(id string) (Stats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, exists := h.subscribers[id]
	if !exists {
		return Stats{}, ErrSubscriberNotFound
	}
	return Stats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}, nil
}

// Published returns how many values were published.
func (h *Hub[T]) Published() uint64 { return h.published.Load() }

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close drops every subscriber. Later Publish calls are no-ops.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.subscribers = nil
}
