package turn

import (
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

type outcomeKind string

const (
	outcomeAction       outcomeKind = "action"
	outcomeTimeout      outcomeKind = "timeout"
	outcomeDisconnected outcomeKind = "disconnected"
	outcomeCancelled    outcomeKind = "cancelled"
	outcomeNPC          outcomeKind = "npc"
)

type outcome struct {
	kind  outcomeKind
	req   Request
	reply chan<- event.Event
}

// waiter is resolved at most once. Whoever removes it from the scheduler's
// table owns the resolution; everybody else gets false from resolve.
type waiter struct {
	actor store.Entity
	ch    chan outcome
}

func newWaiter(actor store.Entity) *waiter {
	return &waiter{actor: actor, ch: make(chan outcome, 1)}
}

func (s *Scheduler) register(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[w.actor] = w
}

// unregister drops w for a turn that will not be played. If somebody
// already resolved it, their outcome is consumed and answered empty.
func (s *Scheduler) unregister(w *waiter) {
	s.mu.Lock()
	pending := s.waiters[w.actor] == w
	if pending {
		delete(s.waiters, w.actor)
	}
	s.mu.Unlock()
	if !pending {
		s.reply(<-w.ch, event.Event{})
	}
}

func (s *Scheduler) resolve(actor store.Entity, o outcome) bool {
	s.mu.Lock()
	w, ok := s.waiters[actor]
	if ok {
		delete(s.waiters, actor)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	w.ch <- o
	return true
}

// Awaiting reports whether a turn is currently suspended on actor.
func (s *Scheduler) Awaiting(actor store.Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.waiters[actor]
	return ok
}
