package stream

import (
	"context"
	"errors"

	"turnkeep/internal/app/engine"
	"turnkeep/internal/app/turn"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, turn.ErrNoPendingTurn):
		return "no_pending_turn"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal_error"
	}
}
