// Package store holds the in-memory message collection for the active
// conversation. It is the dedupe boundary between the history snapshot
// and live frame arrivals.
package store

import (
	"sync"

	"github.com/BrunoPereyra/nexo-vecinal-sub000/internal/domain"
)

// Store keeps every message known for one conversation, in arrival
// order. Messages are never evicted once accepted; presentation order is
// the timeline engine's concern.
type Store struct {
	mu       sync.RWMutex
	seen     map[string]struct{}
	messages []domain.Message
}

func New() *Store {
	return &Store{
		seen: make(map[string]struct{}),
	}
}

// Initialize replaces the current contents with the snapshot. Duplicate
// ids inside the snapshot itself collapse to the first occurrence.
func (s *Store) Initialize(snapshot []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen = make(map[string]struct{}, len(snapshot))
	s.messages = s.messages[:0]
	for _, m := range snapshot {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.messages = append(s.messages, m)
	}
}

// Append inserts the message if its id has not been seen. Appending a
// duplicate is a no-op, not an error; the stored copy is left untouched.
// It reports whether the message was inserted.
func (s *Store) Append(m domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[m.ID]; ok {
		return false
	}
	s.seen[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

// All returns a copy of the known messages in arrival order.
func (s *Store) All() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
