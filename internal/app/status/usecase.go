package status

import (
	"context"

	"turnkeep/internal/app/action"
	"turnkeep/internal/app/turn"
)

type Scheduler interface {
	Status() turn.Status
}

type Catalog interface {
	Definitions() []action.Definition
}

// UseCase reports where the round stands and which actions exist.
type UseCase struct {
	Scheduler Scheduler
	Actions   Catalog
}

func (u UseCase) Execute(_ context.Context) (Response, error) {
	resp := Response{Status: u.Scheduler.Status(), Actions: []ActionInfo{}}
	if u.Actions != nil {
		resp.Actions = Describe(u.Actions.Definitions())
	}
	return resp, nil
}

// Describe flattens definitions for transports.
func Describe(defs []action.Definition) []ActionInfo {
	out := make([]ActionInfo, 0, len(defs))
	for _, def := range defs {
		info := ActionInfo{Name: def.Name, Description: def.Description, Args: make([]ArgInfo, 0, len(def.Args))}
		for _, a := range def.Args {
			info.Args = append(info.Args, ArgInfo{
				Name:        a.Name,
				Type:        string(a.Type),
				Required:    a.Required,
				Description: a.Description,
			})
		}
		out = append(out, info)
	}
	return out
}
