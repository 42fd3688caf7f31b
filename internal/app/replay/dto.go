package replay

import (
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

type Request struct {
	Actor        uint32
	Round        int
	Name         string
	Limit        int
	OccurredFrom int64
	OccurredTo   int64
}

type Response struct {
	Events []event.Event `json:"events"`
	// LastRoom is where the journal last saw Actor arrive, when Actor is set.
	LastRoom *store.Entity `json:"last_room,omitempty"`
}
