// Package engine owns the core goroutine: it plays rounds back to back and
// is the only way transports get actions onto the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"turnkeep/internal/app/action"
	"turnkeep/internal/app/pipeline"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/rs/zerolog"
)

var ErrNotYourTurn = errors.New("not your turn")

// DefaultRoundInterval applies when Config.RoundInterval is not positive.
const DefaultRoundInterval = time.Second

type Config struct {
	Store     *store.Store
	Actions   *action.Registry
	Pipeline  *pipeline.Pipeline
	Scheduler *turn.Scheduler
	// RoundInterval is the pause between rounds. Submissions outside a
	// round can only get in during it.
	RoundInterval time.Duration
	Logger        zerolog.Logger
}

type Engine struct {
	store     *store.Store
	actions   *action.Registry
	pipeline  *pipeline.Pipeline
	scheduler *turn.Scheduler
	interval  time.Duration
	logger    zerolog.Logger

	// core is held for the whole of a round and for every action run
	// outside one.
	core sync.Mutex
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Actions == nil || cfg.Pipeline == nil || cfg.Scheduler == nil {
		return nil, errors.New("engine: store, actions, pipeline and scheduler are required")
	}
	interval := cfg.RoundInterval
	if interval <= 0 {
		interval = DefaultRoundInterval
	}
	return &Engine{
		store:     cfg.Store,
		actions:   cfg.Actions,
		pipeline:  cfg.Pipeline,
		scheduler: cfg.Scheduler,
		interval:  interval,
		logger:    cfg.Logger,
	}, nil
}

func (e *Engine) Store() *store.Store          { return e.store }
func (e *Engine) Actions() *action.Registry    { return e.actions }
func (e *Engine) Pipeline() *pipeline.Pipeline { return e.pipeline }
func (e *Engine) Scheduler() *turn.Scheduler   { return e.scheduler }

// Run plays rounds until ctx is done. A failed round is logged and the
// next one starts after the usual pause.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Dur("round_interval", e.interval).Msg("engine started")
	for {
		if err := e.playRound(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			e.logger.Error().Err(err).Msg("round failed")
		}
		timer := time.NewTimer(e.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.logger.Info().Msg("engine stopped")
			return nil
		case <-timer.C:
		}
	}
	e.logger.Info().Msg("engine stopped")
	return nil
}

func (e *Engine) playRound(ctx context.Context) error {
	e.core.Lock()
	defer e.core.Unlock()
	return e.scheduler.PlayRound(ctx)
}

// Submit delivers a player's action. During actor's turn it resolves the
// suspended turn; between rounds it runs immediately. Any other time it
// fails with ErrNotYourTurn.
func (e *Engine) Submit(ctx context.Context, actor store.Entity, req turn.Request) (event.Event, error) {
	ev, err := e.scheduler.SubmitPlayerAction(ctx, actor, req)
	if !errors.Is(err, turn.ErrNoPendingTurn) {
		return ev, err
	}
	if !e.core.TryLock() {
		return event.Event{}, fmt.Errorf("%w: actor %d", ErrNotYourTurn, actor)
	}
	defer e.core.Unlock()

	args := make(map[string]any, len(req.Args)+1)
	for k, v := range req.Args {
		args[k] = v
	}
	args["actor"] = actor
	return e.runLocked(ctx, req.Name, args)
}

// RunAction runs an action outside turn order, waiting for any round in
// progress to finish first.
func (e *Engine) RunAction(ctx context.Context, name string, args map[string]any) (event.Event, error) {
	e.core.Lock()
	defer e.core.Unlock()
	return e.runLocked(ctx, name, args)
}

func (e *Engine) runLocked(ctx context.Context, name string, args map[string]any) (event.Event, error) {
	ev := e.actions.Run(ctx, name, args).Stamp(time.Now())
	if err := e.pipeline.Queue(ctx, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Disconnect ends actor's suspended turn, if any.
func (e *Engine) Disconnect(actor store.Entity) bool {
	ok := e.scheduler.NotifyDisconnect(actor)
	e.logger.Info().Uint32("actor", uint32(actor)).Bool("turn_ended", ok).Msg("actor disconnected")
	return ok
}
