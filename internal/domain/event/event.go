// Package event defines the immutable record that flows through the pipeline.
package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the closed set of event categories.
type Kind string

const (
	KindAction Kind = "action"
	KindSystem Kind = "system"
	KindTurn   Kind = "turn"
	KindRound  Kind = "round"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAction, KindSystem, KindTurn, KindRound:
		return true
	default:
		return false
	}
}

// Names emitted by the scheduler.
const (
	RoundStart        = "round_start"
	RoundEnd          = "round_end"
	TurnStart         = "turn_start"
	TurnEnd           = "turn_end"
	TurnTimeout       = "turn_timeout"
	ActorDisconnected = "actor_disconnected"
)

// Well-known detail keys.
const (
	DetailSuccess   = "success"
	DetailError     = "error"
	DetailErrorCode = "error_code"
	DetailActor     = "actor"
	DetailRound     = "round"
)

type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Message    string         `json:"message,omitempty"`
	Kind       Kind           `json:"type"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func New(kind Kind, name, message string, details map[string]any) Event {
	return Event{Name: name, Message: message, Kind: kind, Details: details}
}

// Stamp fills ID and OccurredAt when they are still empty.
func (e Event) Stamp(now time.Time) Event {
	if e.ID == "" {
		e.ID = NewID(now)
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now
	}
	return e
}

func NewID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// Success reports details.success, which defaults to true when unset.
func (e Event) Success() bool {
	v, ok := e.Details[DetailSuccess].(bool)
	if !ok {
		return true
	}
	return v
}

func (e Event) IsTurnEnd() bool {
	return e.Kind == KindTurn && e.Name == TurnEnd
}

func (e Event) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// With returns a copy whose details include key=value.
func (e Event) With(key string, value any) Event {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}
