package telemetry

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps the log in process memory. It is meant for tests and for
// running without a writable data directory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) ReadAll(_ context.Context) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	for i, event := range s.events {
		out[i] = cloneEvent(event)
	}
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, cloneEvent(event))
	return nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if slices.Contains(ids, s.events[i].ID) {
			s.events[i].Synced = true
		}
	}
	return nil
}

func (s *MemoryStore) DeleteSynced(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.events)
	s.events = slices.DeleteFunc(s.events, func(event Event) bool { return event.Synced })
	return before - len(s.events), nil
}

func cloneEvent(event Event) Event {
	event.Payload = maps.Clone(event.Payload)
	return event
}
