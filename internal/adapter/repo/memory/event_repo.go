package memory

import (
	"context"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

const defaultListLimit = 100

type EventRepo struct {
	store *Store
}

func NewEventRepo(store *Store) EventRepo {
	return EventRepo{store: store}
}

func (r EventRepo) Append(_ context.Context, events []event.Event) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events = append(r.store.events, events...)
	return nil
}

// List returns the newest matching events in the order they happened.
func (r EventRepo) List(_ context.Context, filter ports.EventFilter) ([]event.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []event.Event
	for i := len(r.store.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := r.store.events[i]
		if matches(ev, filter) {
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil, ports.ErrNotFound
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func matches(ev event.Event, f ports.EventFilter) bool {
	if f.Name != "" && ev.Name != f.Name {
		return false
	}
	if f.Actor != 0 {
		actor, ok := ev.Details[event.DetailActor].(store.Entity)
		if !ok || uint32(actor) != f.Actor {
			return false
		}
	}
	if f.Round != 0 {
		round, ok := ev.Details[event.DetailRound].(int)
		if !ok || round != f.Round {
			return false
		}
	}
	if !f.From.IsZero() && ev.OccurredAt.Before(f.From) {
		return false
	}
	if !f.Before.IsZero() && !ev.OccurredAt.Before(f.Before) {
		return false
	}
	return true
}
