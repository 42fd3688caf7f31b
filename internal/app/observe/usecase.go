package observe

import (
	"context"
	"errors"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/store"
)

var ErrInvalidRequest = errors.New("invalid observe request")

// UseCase reads the store without going through the core; it only takes
// the store's read lock.
type UseCase struct {
	Store *store.Store
}

func (u UseCase) Execute(_ context.Context, req Request) (Response, error) {
	if req.Actor == 0 {
		return Response{}, ErrInvalidRequest
	}
	if !u.Store.Exists(req.Actor) {
		return Response{}, ports.ErrNotFound
	}

	resp := Response{
		Actor:      req.Actor,
		Name:       adventure.NameOf(u.Store, req.Actor),
		Components: make(map[string]store.Value),
	}
	for _, name := range u.Store.ComponentNames() {
		if v, ok := u.Store.MustComponent(name).Get(req.Actor); ok {
			resp.Components[name] = v
		}
	}

	room, ok := adventure.RoomOf(u.Store, req.Actor)
	if !ok {
		return resp, nil
	}
	resp.Room = &Room{
		ID:          room,
		Name:        adventure.NameOf(u.Store, room),
		Description: adventure.DescriptionOf(u.Store, room),
		Exits:       adventure.Exits(u.Store, room),
		Occupants:   []Occupant{},
	}
	for _, e := range adventure.Occupants(u.Store, room, req.Actor) {
		resp.Room.Occupants = append(resp.Room.Occupants, Occupant{ID: e, Name: adventure.NameOf(u.Store, e)})
	}
	return resp, nil
}
