package gameplay

import (
	"context"
	"fmt"

	"turnkeep/internal/app/pipeline"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

const EventActorArrived = "actor_arrived"

type ActionRunner interface {
	Run(ctx context.Context, name string, args map[string]any) event.Event
}

// Systems returns the demo systems. npc_turn plays non-player turns by
// taking the first exit in direction order, or waiting when stuck; arrival
// announces whoever walks into an occupied room.
func Systems(s *store.Store, actions ActionRunner) []pipeline.System {
	return []pipeline.System{
		{
			Name:     "npc_turn",
			Priority: 10,
			Events:   []string{event.TurnStart},
			Handle:   npcTurn(s, actions),
		},
		{
			Name:     "arrival",
			Priority: 20,
			Events:   []string{ActionMove},
			Handle:   arrival(s),
		},
	}
}

func npcTurn(s *store.Store, actions ActionRunner) pipeline.Handler {
	return func(ctx context.Context, ev event.Event) ([]event.Event, error) {
		actor, ok := ev.Details[event.DetailActor].(store.Entity)
		if !ok || adventure.IsPlayer(s, actor) {
			return nil, nil
		}
		if room, ok := adventure.RoomOf(s, actor); ok {
			if exits := adventure.Exits(s, room); len(exits) > 0 {
				res := actions.Run(ctx, ActionMove, map[string]any{"actor": actor, "direction": exits[0].Direction})
				if res.Success() {
					return []event.Event{res}, nil
				}
			}
		}
		return []event.Event{actions.Run(ctx, ActionWait, map[string]any{"actor": actor})}, nil
	}
}

func arrival(s *store.Store) pipeline.Handler {
	return func(_ context.Context, ev event.Event) ([]event.Event, error) {
		if !ev.Success() {
			return nil, nil
		}
		actor, ok := ev.Details[event.DetailActor].(store.Entity)
		if !ok {
			return nil, nil
		}
		room, ok := ev.Details["to_room"].(store.Entity)
		if !ok {
			return nil, nil
		}
		others := adventure.Occupants(s, room, actor)
		if len(others) == 0 {
			return nil, nil
		}
		msg := fmt.Sprintf("%s arrives in the %s.", adventure.NameOf(s, actor), adventure.NameOf(s, room))
		return []event.Event{event.New(event.KindSystem, EventActorArrived, msg, map[string]any{
			event.DetailActor: actor,
			"room":            room,
			"witnesses":       others,
		})}, nil
	}
}
