package turn

import (
	"sort"

	"turnkeep/internal/domain/store"
)

type Actor struct {
	ID         store.Entity `json:"id"`
	Initiative int          `json:"initiative"`
	Player     bool         `json:"player"`
}

// Roster supplies the actors for a round and answers whether one is still
// around when its turn comes up.
type Roster interface {
	Actors() []Actor
	Exists(id store.Entity) bool
}

// StoreRoster reads actors from the store: every entity with ActorComponent
// takes turns, initiative comes from InitiativeField, and entities tagged
// with PlayerComponent are player controlled.
type StoreRoster struct {
	Store           *store.Store
	ActorComponent  string
	PlayerComponent string
	InitiativeField string
}

func (r StoreRoster) Actors() []Actor {
	actors, err := r.Store.Component(r.ActorComponent)
	if err != nil {
		return nil
	}
	players, _ := r.Store.Component(r.PlayerComponent)

	var out []Actor
	for _, id := range actors.Entities() {
		v, _ := actors.Get(id)
		a := Actor{ID: id, Initiative: int(v.Number(r.InitiativeField))}
		if players != nil {
			a.Player = players.Has(id)
		}
		out = append(out, a)
	}
	return out
}

func (r StoreRoster) Exists(id store.Entity) bool {
	actors, err := r.Store.Component(r.ActorComponent)
	if err != nil {
		return false
	}
	return actors.Has(id)
}

// order sorts by descending initiative; equal initiative goes to the lower
// entity id.
func order(actors []Actor) []Actor {
	out := append([]Actor(nil), actors...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Initiative != out[j].Initiative {
			return out[i].Initiative > out[j].Initiative
		}
		return out[i].ID < out[j].ID
	})
	return out
}
