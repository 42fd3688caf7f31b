package engine

import (
	"fmt"
	"time"

	"turnkeep/internal/app/action"
	"turnkeep/internal/app/gameplay"
	"turnkeep/internal/app/pipeline"
	"turnkeep/internal/app/ports"
	"turnkeep/internal/app/turn"
	"turnkeep/internal/domain/adventure"
	"turnkeep/internal/domain/store"

	"github.com/rs/zerolog"
)

type AdventureOptions struct {
	TurnTimeout   time.Duration
	RoundInterval time.Duration
	Logger        zerolog.Logger
	ActionMetrics ports.ActionMetrics
	TurnMetrics   ports.TurnMetrics
}

// NewAdventure seeds the demo world and wires the core around it.
func NewAdventure(opts AdventureOptions) (*Engine, adventure.World, error) {
	s := store.New()
	world, err := adventure.Seed(s)
	if err != nil {
		return nil, adventure.World{}, fmt.Errorf("seed world: %w", err)
	}

	reg := action.NewRegistry(s,
		action.WithLogger(opts.Logger.With().Str("component", "action").Logger()),
		action.WithMetrics(opts.ActionMetrics),
	)
	if err := gameplay.Register(reg); err != nil {
		return nil, adventure.World{}, fmt.Errorf("register actions: %w", err)
	}

	p, err := pipeline.New(gameplay.Systems(s, reg),
		pipeline.WithLogger(opts.Logger.With().Str("component", "pipeline").Logger()),
	)
	if err != nil {
		return nil, adventure.World{}, fmt.Errorf("build pipeline: %w", err)
	}

	roster := turn.StoreRoster{
		Store:           s,
		ActorComponent:  adventure.ComponentActor,
		PlayerComponent: adventure.ComponentPlayer,
		InitiativeField: adventure.FieldInitiative,
	}
	sched := turn.NewScheduler(roster, reg, p,
		turn.WithTimeout(opts.TurnTimeout),
		turn.WithLogger(opts.Logger.With().Str("component", "turn").Logger()),
		turn.WithMetrics(opts.TurnMetrics),
	)

	e, err := New(Config{
		Store:         s,
		Actions:       reg,
		Pipeline:      p,
		Scheduler:     sched,
		RoundInterval: opts.RoundInterval,
		Logger:        opts.Logger.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		return nil, adventure.World{}, err
	}
	return e, world, nil
}
