// Package gameplay holds the demo actions and systems played on the
// adventure map.
package gameplay

import (
	"context"
	"fmt"

	"turnkeep/internal/app/action"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

const (
	ActionMove = "move"
	ActionLook = "look"
	ActionWait = "wait"
)

var actorArg = action.Arg{Name: "actor", Type: action.ArgEntity, Required: true, Description: "acting entity"}

var actorIsActor = action.Requirement{Arg: "actor", Rule: action.Rule{Components: []string{adventure.ComponentActor}}}

func Actions() []action.Definition {
	return []action.Definition{
		{
			Name:        ActionMove,
			Description: "Walk through an exit of the current room.",
			Args: []action.Arg{
				actorArg,
				{Name: "direction", Type: action.ArgString, Required: true, Description: "exit direction, e.g. north"},
			},
			IncludeActorRoom: true,
			Requirements: []action.Requirement{
				actorIsActor,
				{Arg: "direction", Rule: action.Rule{OneOf: &action.RelationValues{
					Relation: adventure.RelationExit,
					Source:   "room",
					Field:    adventure.FieldDirection,
				}}},
			},
			Effect: move,
		},
		{
			Name:             ActionLook,
			Description:      "Describe the current room, its exits and who else is there.",
			Args:             []action.Arg{actorArg},
			IncludeActorRoom: true,
			Requirements:     []action.Requirement{actorIsActor},
			Effect:           look,
		},
		{
			Name:         ActionWait,
			Description:  "Do nothing this turn.",
			Args:         []action.Arg{actorArg},
			Requirements: []action.Requirement{actorIsActor},
			Effect:       wait,
		},
	}
}

// Register adds every demo action to reg.
func Register(reg *action.Registry) error {
	for _, def := range Actions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func move(_ context.Context, in action.Input) (event.Event, error) {
	s := in.Store
	actor, from, direction := in.Entity("actor"), in.Entity("room"), in.String("direction")

	var to store.Entity
	found := false
	for _, exit := range adventure.Exits(s, from) {
		if exit.Direction == direction {
			to, found = exit.To, true
			break
		}
	}
	if !found {
		return event.Event{}, fmt.Errorf("room %d has no %s exit", from, direction)
	}
	if err := s.MustRelation(adventure.RelationContains).Add(actor, to, nil); err != nil {
		return event.Event{}, err
	}
	msg := fmt.Sprintf("%s goes %s to the %s.", adventure.NameOf(s, actor), direction, adventure.NameOf(s, to))
	return event.New(event.KindAction, ActionMove, msg, map[string]any{
		"from_room": from,
		"to_room":   to,
		"direction": direction,
	}), nil
}

func look(_ context.Context, in action.Input) (event.Event, error) {
	s := in.Store
	actor, room := in.Entity("actor"), in.Entity("room")

	exits := adventure.Exits(s, room)
	directions := make([]string, 0, len(exits))
	for _, e := range exits {
		directions = append(directions, e.Direction)
	}
	return event.New(event.KindAction, ActionLook, adventure.DescriptionOf(s, room), map[string]any{
		"room":      room,
		"room_name": adventure.NameOf(s, room),
		"exits":     directions,
		"occupants": adventure.Occupants(s, room, actor),
	}), nil
}

func wait(_ context.Context, in action.Input) (event.Event, error) {
	return event.New(event.KindAction, ActionWait, adventure.NameOf(in.Store, in.Entity("actor"))+" waits.", nil), nil
}
