package ports

import (
	"context"
	"time"

	"turnkeep/internal/domain/event"
)

// EventFilter narrows a journal listing. Zero values match everything;
// a non-positive Limit means the repository default. The occurrence window
// is [From, Before) and is applied before Limit.
type EventFilter struct {
	Name   string
	Actor  uint32
	Round  int
	From   time.Time
	Before time.Time
	Limit  int
}

type EventRepository interface {
	Append(ctx context.Context, events []event.Event) error
	List(ctx context.Context, filter EventFilter) ([]event.Event, error)
}

type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
