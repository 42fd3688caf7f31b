package observe

import (
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/store"
)

type Request struct {
	Actor store.Entity
}

type Response struct {
	Actor      store.Entity           `json:"actor"`
	Name       string                 `json:"name"`
	Components map[string]store.Value `json:"components"`
	Room       *Room                  `json:"room,omitempty"`
}

type Room struct {
	ID          store.Entity     `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Exits       []adventure.Exit `json:"exits"`
	Occupants   []Occupant       `json:"occupants"`
}

type Occupant struct {
	ID   store.Entity `json:"id"`
	Name string       `json:"name"`
}
