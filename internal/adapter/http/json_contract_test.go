package httpadapter

import (
	"encoding/json"
	"testing"
	"time"

	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/replay"
	"turnkeep/internal/app/status"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

func TestResponseJSONUsesSnakeCase(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	ev := event.Event{
		ID:         "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Name:       "move",
		Message:    "Player goes north to the Library.",
		Kind:       event.KindAction,
		Details:    map[string]any{"success": true},
		OccurredAt: now,
	}
	room := store.Entity(2)
	waiting := store.Entity(4)

	cases := []struct {
		name    string
		payload any
		want    []string
		notWant []string
	}{
		{
			name: "observe",
			payload: observe.Response{
				Actor:      4,
				Name:       "Player",
				Components: map[string]store.Value{"name": {"name": "Player"}},
				Room: &observe.Room{
					ID:        1,
					Name:      "Hall",
					Exits:     []adventure.Exit{{Direction: "north", To: 2}},
					Occupants: []observe.Occupant{},
				},
			},
			want:    []string{"actor", "name", "components", "room"},
			notWant: []string{"Actor", "Components", "Room"},
		},
		{
			name:    "action",
			payload: actionResponse{Event: ev},
			want:    []string{"event"},
			notWant: []string{"Event"},
		},
		{
			name: "status",
			payload: status.Response{
				Status:  turn.Status{State: turn.StateAwaitingAction, Round: 3, Order: []turn.Actor{{ID: 4, Initiative: 10, Player: true}}, Awaiting: &waiting},
				Actions: []status.ActionInfo{{Name: "wait", Args: []status.ArgInfo{}}},
			},
			want:    []string{"state", "round", "order", "awaiting", "actions"},
			notWant: []string{"State", "Round", "Awaiting", "Actions"},
		},
		{
			name:    "replay",
			payload: replay.Response{Events: []event.Event{ev}, LastRoom: &room},
			want:    []string{"events", "last_room"},
			notWant: []string{"Events", "LastRoom"},
		},
		{
			name:    "disconnect",
			payload: disconnectResponse{Actor: 4, TurnEnded: true},
			want:    []string{"actor", "turn_ended"},
			notWant: []string{"TurnEnded"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			var got map[string]any
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			for _, key := range tc.want {
				if _, ok := got[key]; !ok {
					t.Fatalf("expected key %q in %s", key, string(b))
				}
			}
			for _, key := range tc.notWant {
				if _, ok := got[key]; ok {
					t.Fatalf("unexpected key %q in %s", key, string(b))
				}
			}
			if tc.name == "action" {
				evMap := asMap(got["event"])
				if _, ok := evMap["occurred_at"]; !ok {
					t.Fatalf("expected nested snake_case key event.occurred_at in %s", string(b))
				}
				if _, ok := evMap["OccurredAt"]; ok {
					t.Fatalf("unexpected nested key event.OccurredAt in %s", string(b))
				}
			}
		})
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
