package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"turnkeep/internal/app/gameplay"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/event"
)

func newTestEngine(t *testing.T, opts AdventureOptions) (*Engine, adventure.World) {
	t.Helper()
	e, w, err := NewAdventure(opts)
	if err != nil {
		t.Fatalf("new adventure: %v", err)
	}
	return e, w
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmit_IdleRunsImmediately(t *testing.T) {
	e, w := newTestEngine(t, AdventureOptions{})

	ev, err := e.Submit(context.Background(), w.Player, turn.Request{Name: gameplay.ActionMove, Args: map[string]any{"direction": "north"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !ev.Success() || ev.ID == "" {
		t.Fatalf("expected stamped success, got %+v", ev)
	}
	if room, _ := adventure.RoomOf(e.Store(), w.Player); room != w.Library {
		t.Fatalf("expected player in library, got %d", room)
	}
	history := e.Pipeline().History()
	if len(history) != 1 || history[0].ID != ev.ID {
		t.Fatalf("expected the action in history, got %+v", history)
	}
}

func TestSubmit_RoutesToSuspendedTurn(t *testing.T) {
	e, w := newTestEngine(t, AdventureOptions{RoundInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	e.Pipeline().Subscribe(func(ev event.Event) { seen = append(seen, ev.Name) })

	stopped := make(chan error, 1)
	go func() { stopped <- e.Run(ctx) }()
	waitFor(t, "player turn", func() bool { return e.Scheduler().Awaiting(w.Player) })

	if _, err := e.Submit(ctx, w.Goblin, turn.Request{Name: gameplay.ActionWait}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn for the goblin, got %v", err)
	}
	ev, err := e.Submit(ctx, w.Player, turn.Request{Name: gameplay.ActionWait})
	if err != nil || !ev.Success() {
		t.Fatalf("submit: %+v, %v", ev, err)
	}
	waitFor(t, "round end", func() bool { return e.Scheduler().State() == turn.StateIdle })

	cancel()
	if err := <-stopped; err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != event.RoundEnd {
		t.Fatalf("expected a finished round, got %v", seen)
	}
}

func TestDisconnect_EndsTurn(t *testing.T) {
	e, w := newTestEngine(t, AdventureOptions{RoundInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- e.Run(ctx) }()
	waitFor(t, "player turn", func() bool { return e.Scheduler().Awaiting(w.Player) })

	if !e.Disconnect(w.Player) {
		t.Fatal("expected the waiting turn to end")
	}
	waitFor(t, "round end", func() bool { return e.Scheduler().State() == turn.StateIdle })
	if e.Disconnect(w.Player) {
		t.Fatal("disconnect outside a turn must be a no-op")
	}
	cancel()
	<-stopped
}

func TestNew_NonPositiveRoundIntervalFallsBack(t *testing.T) {
	e, _ := newTestEngine(t, AdventureOptions{RoundInterval: 0})
	if e.interval != DefaultRoundInterval {
		t.Fatalf("a zero interval would keep the core locked, got %s", e.interval)
	}
	e, _ = newTestEngine(t, AdventureOptions{RoundInterval: 250 * time.Millisecond})
	if e.interval != 250*time.Millisecond {
		t.Fatalf("explicit interval must be kept, got %s", e.interval)
	}
}

func TestNew_RequiresCore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected an error for an empty config")
	}
}
