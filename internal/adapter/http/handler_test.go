package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"turnkeep/internal/adapter/repo/memory"
	"turnkeep/internal/app/action"
	"turnkeep/internal/app/engine"
	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/replay"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"
)

func TestWriteError_NotYourTurn(t *testing.T) {
	ctx := &app.RequestContext{}
	writeError(ctx, engine.ErrNotYourTurn)

	if got, want := ctx.Response.StatusCode(), consts.StatusConflict; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}

	var body map[string]map[string]any
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got, want := body["error"]["code"], "not_your_turn"; got != want {
		t.Fatalf("error code mismatch: got=%q want=%q", got, want)
	}
}

func TestWriteError_UnknownErrorHidesMessage(t *testing.T) {
	ctx := &app.RequestContext{}
	writeError(ctx, errors.New("db password leaked"))

	if got, want := ctx.Response.StatusCode(), consts.StatusInternalServerError; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got, want := body["error"]["message"], "internal error"; got != want {
		t.Fatalf("message mismatch: got=%q want=%q", got, want)
	}
}

func TestAction_RejectsInvalidActorID(t *testing.T) {
	h := Handler{Engine: &fakeEngine{}}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "abc"}}
	ctx.Request.SetBody([]byte(`{"action":"wait"}`))

	h.action(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestAction_RequiresActionName(t *testing.T) {
	eng := &fakeEngine{}
	h := Handler{Engine: eng}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "4"}}
	ctx.Request.SetBody([]byte(`{"args":{}}`))

	h.action(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	if eng.calls != 0 {
		t.Fatalf("engine should not be called, got %d calls", eng.calls)
	}
}

func TestAction_OK(t *testing.T) {
	eng := &fakeEngine{result: event.New(event.KindAction, "move", "Player goes north.", map[string]any{
		event.DetailSuccess: true,
		event.DetailActor:   store.Entity(4),
	})}
	h := Handler{Engine: eng}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "4"}}
	ctx.Request.SetBody([]byte(`{"action":"move","args":{"direction":"north"}}`))

	h.action(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	if eng.actor != 4 {
		t.Fatalf("expected actor 4, got %d", eng.actor)
	}
	if eng.req.Name != "move" || eng.req.Args["direction"] != "north" {
		t.Fatalf("unexpected request forwarded: %+v", eng.req)
	}
	var body struct {
		Event event.Event `json:"event"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Event.Name != "move" {
		t.Fatalf("expected move event, got %+v", body.Event)
	}
}

func TestAction_RejectedEventCarriesCode(t *testing.T) {
	eng := &fakeEngine{result: event.New(event.KindAction, "move", "", map[string]any{
		event.DetailSuccess:   false,
		event.DetailError:     "invalid value",
		event.DetailErrorCode: action.CodeInvalidValue,
		"valid_options":       []any{"north", "down"},
	})}
	h := Handler{Engine: eng}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "4"}}
	ctx.Request.SetBody([]byte(`{"action":"move","args":{"direction":"east"}}`))

	h.action(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusConflict; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body struct {
		Result string `json:"result"`
		Error  struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Result != "rejected" || body.Error.Code != action.CodeInvalidValue {
		t.Fatalf("unexpected rejection body: %s", ctx.Response.Body())
	}
	if _, ok := body.Error.Details["valid_options"]; !ok {
		t.Fatalf("expected valid_options in details: %s", ctx.Response.Body())
	}
	if _, ok := body.Error.Details[event.DetailSuccess]; ok {
		t.Fatalf("success flag should not be repeated in details")
	}
}

func TestAction_NotYourTurn(t *testing.T) {
	h := Handler{Engine: &fakeEngine{err: engine.ErrNotYourTurn}}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "5"}}
	ctx.Request.SetBody([]byte(`{"action":"wait"}`))

	h.action(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusConflict; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestRejectionStatus(t *testing.T) {
	cases := map[string]int{
		action.CodeUnknownAction:           consts.StatusBadRequest,
		action.CodeArgumentSchemaViolation: consts.StatusBadRequest,
		action.CodeEffectFailure:           consts.StatusUnprocessableEntity,
		action.CodeMissingRoom:             consts.StatusConflict,
		action.CodeNotRelationTarget:       consts.StatusConflict,
	}
	for code, want := range cases {
		if got := rejectionStatus(code); got != want {
			t.Fatalf("%s: got=%d want=%d", code, got, want)
		}
	}
}

func TestDisconnect_ReportsTurnEnded(t *testing.T) {
	eng := &fakeEngine{disconnected: true}
	h := Handler{Engine: eng}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "4"}}

	h.disconnect(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body disconnectResponse
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.TurnEnded || body.Actor != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestObserve_UnknownActorIsNotFound(t *testing.T) {
	s := store.New()
	if _, err := adventure.Seed(s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := Handler{ObserveUC: observe.UseCase{Store: s}}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "999"}}

	h.observe(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestObserve_OK(t *testing.T) {
	s := store.New()
	w, err := adventure.Seed(s)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := Handler{ObserveUC: observe.UseCase{Store: s}}
	ctx := &app.RequestContext{}
	ctx.Params = param.Params{{Key: "actor", Value: "4"}}

	h.observe(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body observe.Response
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Room == nil || body.Room.ID != w.Hall {
		t.Fatalf("expected player in hall, got %+v", body.Room)
	}
}

func TestReplay_RejectsOversizedLimit(t *testing.T) {
	mem := memory.NewStore()
	h := Handler{ReplayUC: replay.UseCase{Events: memory.NewEventRepo(mem)}}
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI("/api/replay?limit=9999")

	h.replay(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusBadRequest; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestReplay_FiltersByActor(t *testing.T) {
	mem := memory.NewStore()
	repo := memory.NewEventRepo(mem)
	err := repo.Append(context.Background(), []event.Event{
		{ID: "1", Name: "move", Kind: event.KindAction, Details: map[string]any{event.DetailActor: store.Entity(4), "to_room": store.Entity(2)}},
		{ID: "2", Name: "move", Kind: event.KindAction, Details: map[string]any{event.DetailActor: store.Entity(5), "to_room": store.Entity(1)}},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	h := Handler{ReplayUC: replay.UseCase{Events: repo}}
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI("/api/replay?actor=4")

	h.replay(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d body=%s", got, want, ctx.Response.Body())
	}
	var body struct {
		Events   []event.Event `json:"events"`
		LastRoom *uint32       `json:"last_room"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].ID != "1" {
		t.Fatalf("unexpected events: %+v", body.Events)
	}
	if body.LastRoom == nil || *body.LastRoom != 2 {
		t.Fatalf("expected last room 2, got %v", body.LastRoom)
	}
}

func TestKPI_NotConfigured(t *testing.T) {
	h := Handler{}
	ctx := &app.RequestContext{}

	h.kpi(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusNotFound; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
}

func TestWorld_DumpsStore(t *testing.T) {
	s := store.New()
	if _, err := adventure.Seed(s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := Handler{World: s}
	ctx := &app.RequestContext{}

	h.world(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusOK; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	var body store.Dump
	if err := json.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Relations[adventure.RelationExit]) != 4 {
		t.Fatalf("expected 4 exits, got %+v", body.Relations[adventure.RelationExit])
	}
}

type fakeEngine struct {
	result       event.Event
	err          error
	disconnected bool

	calls int
	actor store.Entity
	req   turn.Request
}

func (f *fakeEngine) Submit(_ context.Context, actor store.Entity, req turn.Request) (event.Event, error) {
	f.calls++
	f.actor = actor
	f.req = req
	return f.result, f.err
}

func (f *fakeEngine) Disconnect(store.Entity) bool {
	return f.disconnected
}
