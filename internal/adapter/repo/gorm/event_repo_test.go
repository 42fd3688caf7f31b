package gormrepo

import (
	"testing"
	"time"

	"turnkeep/internal/adapter/repo/gorm/model"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

func TestToEvent_DecodesDetails(t *testing.T) {
	at := time.Unix(1_700_000_000, 0).UTC()
	ev, err := toEvent(model.JournalEvent{
		EventID:    "01J",
		Name:       "move",
		Kind:       string(event.KindAction),
		Details:    []byte(`{"actor":4,"to_room":2}`),
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("toEvent: %v", err)
	}
	if ev.ID != "01J" || ev.Kind != event.KindAction || !ev.OccurredAt.Equal(at) {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Details["to_room"] != float64(2) {
		t.Fatalf("expected decoded details, got %+v", ev.Details)
	}
}

func TestToEvent_CorruptDetailsIsAnError(t *testing.T) {
	if _, err := toEvent(model.JournalEvent{EventID: "01K", Details: []byte(`[1,2]`)}); err == nil {
		t.Fatal("details that are not an object must fail to decode")
	}
	if ev, err := toEvent(model.JournalEvent{EventID: "01L"}); err != nil || ev.Details != nil {
		t.Fatalf("missing details decode to nil, got %+v, %v", ev.Details, err)
	}
}

func TestColumns_FromDetails(t *testing.T) {
	ev := event.New(event.KindAction, "move", "", map[string]any{
		event.DetailActor: store.Entity(4),
		event.DetailRound: 3,
	})
	if got := actorColumn(ev); got == nil || *got != 4 {
		t.Fatalf("expected actor 4, got %v", got)
	}
	if got := roundColumn(ev); got == nil || *got != 3 {
		t.Fatalf("expected round 3, got %v", got)
	}
	if actorColumn(event.New(event.KindRound, event.RoundStart, "", nil)) != nil {
		t.Fatal("events without an actor leave the column null")
	}
}
