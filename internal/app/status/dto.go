package status

import "turnkeep/internal/app/turn"

type Response struct {
	turn.Status
	Actions []ActionInfo `json:"actions"`
}

type ActionInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Args        []ArgInfo `json:"args"`
}

type ArgInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}
