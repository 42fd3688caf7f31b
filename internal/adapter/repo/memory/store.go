package memory

import (
	"sync"

	"turnkeep/internal/domain/event"
)

// Store keeps the journal in process memory. It is the default when no
// database DSN is configured and does not survive a restart.
type Store struct {
	mu     sync.RWMutex
	events []event.Event

	txMu sync.Mutex
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
