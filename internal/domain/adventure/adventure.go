// Package adventure is the demo world: a few connected rooms, a player and
// a goblin. It only touches the store; actions and systems built on it live
// in the gameplay package.
package adventure

import (
	"fmt"
	"sort"

	"turnkeep/internal/domain/store"
)

const (
	ComponentName        = "name"
	ComponentDescription = "description"
	ComponentRoom        = "room"
	ComponentActor       = "actor"
	ComponentPlayer      = "player"

	RelationContains = "contains"
	RelationExit     = "exit"

	FieldInitiative = "initiative"
	FieldDirection  = "direction"
)

// Register declares every table the demo world uses.
func Register(s *store.Store) error {
	components := []struct {
		name   string
		schema store.Schema
	}{
		{ComponentName, store.Schema{{Name: "name", Kind: store.FieldString}}},
		{ComponentDescription, store.Schema{{Name: "text", Kind: store.FieldString}}},
		{ComponentRoom, nil},
		{ComponentActor, store.Schema{{Name: FieldInitiative, Kind: store.FieldNumber}}},
		{ComponentPlayer, nil},
	}
	for _, c := range components {
		if _, err := s.RegisterComponent(c.name, c.schema); err != nil {
			return fmt.Errorf("register component %s: %w", c.name, err)
		}
	}
	if _, err := s.RegisterRelation(RelationContains, store.RelationOptions{
		Exclusive:         true,
		AutoRemoveSubject: true,
	}); err != nil {
		return fmt.Errorf("register relation %s: %w", RelationContains, err)
	}
	if _, err := s.RegisterRelation(RelationExit, store.RelationOptions{
		Schema: store.Schema{{Name: FieldDirection, Kind: store.FieldString}},
	}); err != nil {
		return fmt.Errorf("register relation %s: %w", RelationExit, err)
	}
	return nil
}

type World struct {
	Hall    store.Entity
	Library store.Entity
	Cellar  store.Entity
	Player  store.Entity
	Goblin  store.Entity
}

// Seed registers the tables and builds the starting map:
//
//	Library
//	   |
//	 Hall  (player)
//	   |
//	 Cellar (goblin)
func Seed(s *store.Store) (World, error) {
	if err := Register(s); err != nil {
		return World{}, err
	}
	var w World
	var err error
	if w.Hall, err = NewRoom(s, "Hall", "A draughty hall with a staircase leading down."); err != nil {
		return World{}, err
	}
	if w.Library, err = NewRoom(s, "Library", "Shelves of mouldering books."); err != nil {
		return World{}, err
	}
	if w.Cellar, err = NewRoom(s, "Cellar", "Damp stone and the smell of something living."); err != nil {
		return World{}, err
	}
	links := []struct {
		from, to  store.Entity
		direction string
	}{
		{w.Hall, w.Library, "north"},
		{w.Library, w.Hall, "south"},
		{w.Hall, w.Cellar, "down"},
		{w.Cellar, w.Hall, "up"},
	}
	for _, l := range links {
		if err := Connect(s, l.from, l.to, l.direction); err != nil {
			return World{}, err
		}
	}
	if w.Player, err = NewActor(s, "Player", 10, true, w.Hall); err != nil {
		return World{}, err
	}
	if w.Goblin, err = NewActor(s, "Goblin", 5, false, w.Cellar); err != nil {
		return World{}, err
	}
	return w, nil
}

func NewRoom(s *store.Store, name, description string) (store.Entity, error) {
	e := s.NewEntity()
	if err := s.MustComponent(ComponentRoom).Set(e, nil); err != nil {
		return 0, err
	}
	if err := s.MustComponent(ComponentName).Set(e, store.Value{"name": name}); err != nil {
		return 0, err
	}
	if err := s.MustComponent(ComponentDescription).Set(e, store.Value{"text": description}); err != nil {
		return 0, err
	}
	return e, nil
}

func Connect(s *store.Store, from, to store.Entity, direction string) error {
	return s.MustRelation(RelationExit).Add(from, to, store.Value{FieldDirection: direction})
}

func NewActor(s *store.Store, name string, initiative int, player bool, room store.Entity) (store.Entity, error) {
	e := s.NewEntity()
	if err := s.MustComponent(ComponentActor).Set(e, store.Value{FieldInitiative: float64(initiative)}); err != nil {
		return 0, err
	}
	if err := s.MustComponent(ComponentName).Set(e, store.Value{"name": name}); err != nil {
		return 0, err
	}
	if player {
		if err := s.MustComponent(ComponentPlayer).Set(e, nil); err != nil {
			return 0, err
		}
	}
	if err := s.MustRelation(RelationContains).Add(e, room, nil); err != nil {
		return 0, err
	}
	return e, nil
}

// RoomOf returns the room holding e.
func RoomOf(s *store.Store, e store.Entity) (store.Entity, bool) {
	rooms := s.MustComponent(ComponentRoom)
	for _, t := range s.MustRelation(RelationContains).Targets(e) {
		if rooms.Has(t) {
			return t, true
		}
	}
	return 0, false
}

type Exit struct {
	Direction string       `json:"direction"`
	To        store.Entity `json:"to"`
}

// Exits lists the exits of room sorted by direction.
func Exits(s *store.Store, room store.Entity) []Exit {
	rel := s.MustRelation(RelationExit)
	var out []Exit
	for _, to := range rel.Targets(room) {
		data, ok := rel.Data(room, to)
		if !ok {
			continue
		}
		out = append(out, Exit{Direction: data.String(FieldDirection), To: to})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Direction < out[j].Direction })
	return out
}

// Occupants lists everything in room except except.
func Occupants(s *store.Store, room store.Entity, except store.Entity) []store.Entity {
	var out []store.Entity
	for _, e := range s.MustRelation(RelationContains).Subjects(room) {
		if e != except {
			out = append(out, e)
		}
	}
	return out
}

// NameOf falls back to "#<id>" for unnamed entities.
func NameOf(s *store.Store, e store.Entity) string {
	if v, ok := s.MustComponent(ComponentName).Get(e); ok {
		if name := v.String("name"); name != "" {
			return name
		}
	}
	return fmt.Sprintf("#%d", e)
}

func DescriptionOf(s *store.Store, e store.Entity) string {
	if v, ok := s.MustComponent(ComponentDescription).Get(e); ok {
		return v.String("text")
	}
	return ""
}

func IsPlayer(s *store.Store, e store.Entity) bool {
	return s.MustComponent(ComponentPlayer).Has(e)
}
