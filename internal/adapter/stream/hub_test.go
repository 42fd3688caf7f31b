package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"turnkeep/internal/app/engine"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/gorilla/websocket"
)

func TestHub_BroadcastsEventsToEveryClient(t *testing.T) {
	hub := NewHub(&fakeEngine{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	spectator := dial(t, srv, "")
	player := dial(t, srv, "?actor=4")
	waitForClients(t, hub, 2)

	hub.Listen(event.New(event.KindRound, event.RoundStart, "", map[string]any{"round": 1}))

	for _, conn := range []*websocket.Conn{spectator, player} {
		var msg struct {
			Type  string      `json:"type"`
			Event event.Event `json:"event"`
		}
		readJSON(t, conn, &msg)
		if msg.Type != "event" || msg.Event.Name != event.RoundStart {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestHub_ActionIsSubmittedForBoundActor(t *testing.T) {
	eng := &fakeEngine{result: event.New(event.KindAction, "wait", "Player waits.", nil)}
	hub := NewHub(eng)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?actor=4")
	if err := conn.WriteJSON(map[string]any{"type": "action", "seq": 7, "action": "wait", "args": map[string]any{"actor": 99}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var msg struct {
		Type  string      `json:"type"`
		Seq   uint64      `json:"seq"`
		Event event.Event `json:"event"`
	}
	readJSON(t, conn, &msg)
	if msg.Type != "result" || msg.Seq != 7 || msg.Event.Name != "wait" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
	actor, req := eng.last()
	if actor != 4 || req.Name != "wait" {
		t.Fatalf("unexpected submission: actor=%d req=%+v", actor, req)
	}
}

func TestHub_SubmitErrorIsReported(t *testing.T) {
	hub := NewHub(&fakeEngine{err: engine.ErrNotYourTurn})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?actor=5")
	if err := conn.WriteJSON(map[string]any{"type": "action", "seq": 1, "action": "wait"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg errorMessage
	readJSON(t, conn, &msg)
	if msg.Type != "error" || msg.Code != "not_your_turn" {
		t.Fatalf("unexpected reply: %+v", msg)
	}
}

func TestHub_SpectatorCannotAct(t *testing.T) {
	eng := &fakeEngine{}
	hub := NewHub(eng)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	if err := conn.WriteJSON(map[string]any{"type": "action", "action": "wait"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg errorMessage
	readJSON(t, conn, &msg)
	if msg.Code != "spectator" {
		t.Fatalf("expected spectator error, got %+v", msg)
	}
	if eng.submitted() != 0 {
		t.Fatalf("spectator action reached the engine")
	}
}

func TestHub_CloseDisconnectsActor(t *testing.T) {
	eng := &fakeEngine{disconnects: make(chan store.Entity, 1)}
	hub := NewHub(eng)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "?actor=4")
	waitForClients(t, hub, 1)
	conn.Close()

	select {
	case actor := <-eng.disconnects:
		if actor != 4 {
			t.Fatalf("disconnected actor = %d, want 4", actor)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected Disconnect after close")
	}
	waitForClients(t, hub, 0)
}

func TestHub_RejectsInvalidActor(t *testing.T) {
	hub := NewHub(&fakeEngine{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?actor=zero"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, out any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(out); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakeEngine struct {
	result      event.Event
	err         error
	disconnects chan store.Entity

	mu    sync.Mutex
	calls int
	actor store.Entity
	req   turn.Request
}

func (f *fakeEngine) Submit(_ context.Context, actor store.Entity, req turn.Request) (event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.actor = actor
	f.req = req
	return f.result, f.err
}

func (f *fakeEngine) Disconnect(actor store.Entity) bool {
	if f.disconnects != nil {
		f.disconnects <- actor
	}
	return true
}

func (f *fakeEngine) last() (store.Entity, turn.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actor, f.req
}

func (f *fakeEngine) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
