package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"turnkeep/internal/app/action"
	"turnkeep/internal/app/engine"
	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/ports"
	"turnkeep/internal/app/replay"
	"turnkeep/internal/app/status"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

var ErrInvalidActorID = errors.New("invalid actor id")

// Submitter is the slice of the engine the transport needs.
type Submitter interface {
	Submit(ctx context.Context, actor store.Entity, req turn.Request) (event.Event, error)
	Disconnect(actor store.Entity) bool
}

type worldDumper interface {
	Dump() store.Dump
}

type Handler struct {
	Engine    Submitter
	ObserveUC observe.UseCase
	StatusUC  status.UseCase
	ReplayUC  replay.UseCase
	World     worldDumper
	KPI       kpiSnapshotProvider

	// CORSOrigin is the browser origin allowed to call the API. Empty allows any.
	CORSOrigin string
}

func (h Handler) RegisterRoutes(s *server.Hertz) {
	s.Use(newCORSPolicy(h.CORSOrigin).middleware())

	api := s.Group("/api")
	api.GET("/status", h.status)
	api.GET("/actions", h.actions)
	api.GET("/replay", h.replay)
	api.GET("/world", h.world)

	actors := api.Group("/actors")
	actors.POST("/:actor/action", h.action)
	actors.POST("/:actor/disconnect", h.disconnect)
	actors.GET("/:actor/observe", h.observe)

	s.GET("/ops/kpi", h.kpi)
}

type actionRequest struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

type actionResponse struct {
	Event event.Event `json:"event"`
}

type disconnectResponse struct {
	Actor     store.Entity `json:"actor"`
	TurnEnded bool         `json:"turn_ended"`
}

func (h Handler) action(c context.Context, ctx *app.RequestContext) {
	actor, err := actorParam(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	var body actionRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(body.Action) == "" {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "action is required")
		return
	}

	ev, err := h.Engine.Submit(c, actor, turn.Request{Name: body.Action, Args: body.Args})
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !ev.Success() {
		writeActionRejected(ctx, ev)
		return
	}
	ctx.JSON(consts.StatusOK, actionResponse{Event: ev})
}

func (h Handler) disconnect(_ context.Context, ctx *app.RequestContext) {
	actor, err := actorParam(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ended := h.Engine.Disconnect(actor)
	ctx.JSON(consts.StatusOK, disconnectResponse{Actor: actor, TurnEnded: ended})
}

func (h Handler) observe(c context.Context, ctx *app.RequestContext) {
	actor, err := actorParam(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}

	resp, err := h.ObserveUC.Execute(c, observe.Request{Actor: actor})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) status(c context.Context, ctx *app.RequestContext) {
	resp, err := h.StatusUC.Execute(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) actions(c context.Context, ctx *app.RequestContext) {
	resp, err := h.StatusUC.Execute(c)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"actions": resp.Actions})
}

func (h Handler) replay(c context.Context, ctx *app.RequestContext) {
	actor, err := parseUint32(string(ctx.Query("actor")))
	if err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "invalid actor")
		return
	}
	round, _ := strconv.Atoi(string(ctx.Query("round")))
	limit, _ := strconv.Atoi(string(ctx.Query("limit")))
	occurredFrom, _ := strconv.ParseInt(string(ctx.Query("occurred_from")), 10, 64)
	occurredTo, _ := strconv.ParseInt(string(ctx.Query("occurred_to")), 10, 64)
	resp, err := h.ReplayUC.Execute(c, replay.Request{
		Actor:        actor,
		Round:        round,
		Name:         string(ctx.Query("name")),
		Limit:        limit,
		OccurredFrom: occurredFrom,
		OccurredTo:   occurredTo,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, resp)
}

func (h Handler) world(_ context.Context, ctx *app.RequestContext) {
	if h.World == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "world dump not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.World.Dump())
}

type kpiSnapshotProvider interface {
	SnapshotAny() any
}

func (h Handler) kpi(_ context.Context, ctx *app.RequestContext) {
	if h.KPI == nil {
		writeErrorBody(ctx, consts.StatusNotFound, "not_configured", "kpi provider not configured")
		return
	}
	ctx.JSON(consts.StatusOK, h.KPI.SnapshotAny())
}

func actorParam(ctx *app.RequestContext) (store.Entity, error) {
	raw := ctx.Param("actor")
	id, err := parseUint32(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidActorID, raw)
	}
	return store.Entity(id), nil
}

func parseUint32(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, ErrInvalidActorID):
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_actor_id", err.Error())
	case errors.Is(err, engine.ErrNotYourTurn):
		writeErrorBody(ctx, consts.StatusConflict, "not_your_turn", err.Error())
	case errors.Is(err, turn.ErrNoPendingTurn):
		writeErrorBody(ctx, consts.StatusConflict, "no_pending_turn", err.Error())
	case errors.Is(err, observe.ErrInvalidRequest),
		errors.Is(err, replay.ErrInvalidRequest):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeErrorBody(ctx, consts.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ports.ErrConflict):
		writeErrorBody(ctx, consts.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "cancelled", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// rejectionStatus maps details.error_code of a failed action event.
func rejectionStatus(code string) int {
	switch code {
	case action.CodeUnknownAction, action.CodeArgumentSchemaViolation:
		return consts.StatusBadRequest
	case action.CodeEffectFailure:
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusConflict
	}
}

func writeActionRejected(ctx *app.RequestContext, ev event.Event) {
	code, _ := ev.Details[event.DetailErrorCode].(string)
	message, _ := ev.Details[event.DetailError].(string)
	details := make(map[string]any, len(ev.Details))
	for k, v := range ev.Details {
		switch k {
		case event.DetailSuccess, event.DetailError, event.DetailErrorCode:
			continue
		}
		details[k] = v
	}
	ctx.JSON(rejectionStatus(code), map[string]any{
		"result": "rejected",
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
		"event": ev,
	})
}
