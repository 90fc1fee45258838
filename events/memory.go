package events

import (
	"context"
	"sync"

	"github.com/ruteri/attestation-registry/interfaces"
)

// MemorySink stores events in memory (development/testing use)
type MemorySink struct {
	mu     sync.Mutex
	events []interfaces.Event
}

// NewMemorySink creates a new in-memory event sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit appends the event.
func (s *MemorySink) Emit(_ context.Context, event interfaces.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all emitted events in order.
func (s *MemorySink) Events() []interfaces.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns the number of stored events
func (s *MemorySink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
