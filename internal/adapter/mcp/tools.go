package mcpadapter

import (
	"context"
	"fmt"
	"time"

	"turnkeep/internal/app/observe"
	"turnkeep/internal/app/status"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// EventResult is the tool-facing form of an event.
type EventResult struct {
	ID         string         `json:"id" jsonschema:"event identifier"`
	Name       string         `json:"name" jsonschema:"event name, the action name for action results"`
	Type       string         `json:"type" jsonschema:"event kind (action, system, turn, round)"`
	Message    string         `json:"message,omitempty" jsonschema:"human readable outcome"`
	Success    bool           `json:"success" jsonschema:"false when the action was rejected or failed"`
	ErrorCode  string         `json:"error_code,omitempty" jsonschema:"stable failure code when success is false"`
	Details    map[string]any `json:"details,omitempty" jsonschema:"event payload"`
	OccurredAt string         `json:"occurred_at" jsonschema:"RFC3339 timestamp"`
}

func eventResult(ev event.Event) EventResult {
	code, _ := ev.Details[event.DetailErrorCode].(string)
	return EventResult{
		ID:         ev.ID,
		Name:       ev.Name,
		Type:       string(ev.Kind),
		Message:    ev.Message,
		Success:    ev.Success(),
		ErrorCode:  code,
		Details:    ev.Details,
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

type RunActionInput struct {
	Actor  uint32         `json:"actor" jsonschema:"entity id of the acting player"`
	Action string         `json:"action" jsonschema:"registered action name"`
	Args   map[string]any `json:"args,omitempty" jsonschema:"action arguments; actor and room are filled in by the server"`
}

type RunActionResult struct {
	Event EventResult `json:"event" jsonschema:"the action's result event"`
}

func RunActionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "run_action",
		Description: "Submits an action for a player. During a round it only succeeds on that player's turn; between rounds it runs immediately.",
	}
}

func RunActionHandler(engine Submitter) mcp.ToolHandlerFor[RunActionInput, RunActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RunActionInput) (*mcp.CallToolResult, RunActionResult, error) {
		if input.Actor == 0 {
			return nil, RunActionResult{}, fmt.Errorf("actor is required")
		}
		if input.Action == "" {
			return nil, RunActionResult{}, fmt.Errorf("action is required")
		}
		ev, err := engine.Submit(ctx, store.Entity(input.Actor), turn.Request{Name: input.Action, Args: input.Args})
		if err != nil {
			return nil, RunActionResult{}, fmt.Errorf("run action: %w", err)
		}
		return nil, RunActionResult{Event: eventResult(ev)}, nil
	}
}

type ObserveInput struct {
	Actor uint32 `json:"actor" jsonschema:"entity id to observe"`
}

type ExitResult struct {
	Direction string `json:"direction"`
	To        uint32 `json:"to"`
}

type OccupantResult struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

type ObserveResult struct {
	Actor           uint32                 `json:"actor"`
	Name            string                 `json:"name"`
	Components      map[string]store.Value `json:"components"`
	RoomID          uint32                 `json:"room_id,omitempty" jsonschema:"zero when the actor is in no room"`
	RoomName        string                 `json:"room_name,omitempty"`
	RoomDescription string                 `json:"room_description,omitempty"`
	Exits           []ExitResult           `json:"exits"`
	Occupants       []OccupantResult       `json:"occupants"`
}

func ObserveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "observe",
		Description: "Describes an entity: its components, the room it is in, exits and who else is there.",
	}
}

func ObserveHandler(uc observe.UseCase) mcp.ToolHandlerFor[ObserveInput, ObserveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ObserveInput) (*mcp.CallToolResult, ObserveResult, error) {
		resp, err := uc.Execute(ctx, observe.Request{Actor: store.Entity(input.Actor)})
		if err != nil {
			return nil, ObserveResult{}, fmt.Errorf("observe %d: %w", input.Actor, err)
		}
		out := ObserveResult{
			Actor:      uint32(resp.Actor),
			Name:       resp.Name,
			Components: resp.Components,
			Exits:      []ExitResult{},
			Occupants:  []OccupantResult{},
		}
		if resp.Room != nil {
			out.RoomID = uint32(resp.Room.ID)
			out.RoomName = resp.Room.Name
			out.RoomDescription = resp.Room.Description
			for _, x := range resp.Room.Exits {
				out.Exits = append(out.Exits, ExitResult{Direction: x.Direction, To: uint32(x.To)})
			}
			for _, o := range resp.Room.Occupants {
				out.Occupants = append(out.Occupants, OccupantResult{ID: uint32(o.ID), Name: o.Name})
			}
		}
		return nil, out, nil
	}
}

type TurnStatusInput struct{}

type TurnActor struct {
	ID         uint32 `json:"id"`
	Initiative int    `json:"initiative"`
	Player     bool   `json:"player"`
}

type TurnStatusResult struct {
	State    string      `json:"state" jsonschema:"scheduler state"`
	Round    int         `json:"round"`
	Index    int         `json:"index" jsonschema:"position of the current turn in order"`
	Order    []TurnActor `json:"order"`
	Awaiting uint32      `json:"awaiting,omitempty" jsonschema:"player whose action is awaited, zero when none"`
}

func TurnStatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "turn_status",
		Description: "Reports the scheduler state, the round's turn order and which player is being waited on.",
	}
}

func TurnStatusHandler(uc status.UseCase) mcp.ToolHandlerFor[TurnStatusInput, TurnStatusResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ TurnStatusInput) (*mcp.CallToolResult, TurnStatusResult, error) {
		resp, err := uc.Execute(ctx)
		if err != nil {
			return nil, TurnStatusResult{}, err
		}
		out := TurnStatusResult{
			State: resp.State,
			Round: resp.Round,
			Index: resp.Index,
			Order: make([]TurnActor, 0, len(resp.Order)),
		}
		for _, a := range resp.Order {
			out.Order = append(out.Order, TurnActor{ID: uint32(a.ID), Initiative: a.Initiative, Player: a.Player})
		}
		if resp.Awaiting != nil {
			out.Awaiting = uint32(*resp.Awaiting)
		}
		return nil, out, nil
	}
}

type ListActionsInput struct{}

type ListActionsResult struct {
	Actions []status.ActionInfo `json:"actions"`
}

func ListActionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_actions",
		Description: "Lists registered actions with their arguments.",
	}
}

func ListActionsHandler(uc status.UseCase) mcp.ToolHandlerFor[ListActionsInput, ListActionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListActionsInput) (*mcp.CallToolResult, ListActionsResult, error) {
		resp, err := uc.Execute(ctx)
		if err != nil {
			return nil, ListActionsResult{}, err
		}
		return nil, ListActionsResult{Actions: resp.Actions}, nil
	}
}
