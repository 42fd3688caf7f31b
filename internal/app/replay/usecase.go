package replay

import (
	"context"
	"errors"
	"time"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

const MaxLimit = 500

var ErrInvalidRequest = errors.New("invalid replay request")

type UseCase struct {
	Events ports.EventRepository
}

func (u UseCase) Execute(ctx context.Context, req Request) (Response, error) {
	if req.Limit < 0 || req.Limit > MaxLimit || req.Round < 0 {
		return Response{}, ErrInvalidRequest
	}
	if req.OccurredFrom > 0 && req.OccurredTo > 0 && req.OccurredFrom > req.OccurredTo {
		return Response{}, ErrInvalidRequest
	}
	filter := ports.EventFilter{
		Name:  req.Name,
		Actor: req.Actor,
		Round: req.Round,
		Limit: req.Limit,
	}
	// whole seconds, both ends inclusive
	if req.OccurredFrom > 0 {
		filter.From = time.Unix(req.OccurredFrom, 0)
	}
	if req.OccurredTo > 0 {
		filter.Before = time.Unix(req.OccurredTo+1, 0)
	}
	events, err := u.Events.List(ctx, filter)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Events: events}
	if req.Actor != 0 {
		if room, ok := lastRoom(events, store.Entity(req.Actor)); ok {
			resp.LastRoom = &room
		}
	}
	return resp, nil
}

// lastRoom follows successful events that moved actor somewhere.
func lastRoom(events []event.Event, actor store.Entity) (store.Entity, bool) {
	var (
		room  store.Entity
		found bool
	)
	for _, evt := range events {
		if !evt.Success() {
			continue
		}
		who, ok := entity(evt.Details[event.DetailActor])
		if !ok || who != actor {
			continue
		}
		if to, ok := entity(evt.Details["to_room"]); ok {
			room, found = to, true
		}
	}
	return room, found
}

// entity accepts both in-process ids and ids decoded from JSON.
func entity(v any) (store.Entity, bool) {
	switch n := v.(type) {
	case store.Entity:
		return n, true
	case float64:
		if n < 0 {
			return 0, false
		}
		return store.Entity(n), true
	}
	return 0, false
}
