// Package turn drives rounds and turns over an ordered actor list.
//
// A round snapshots the roster by descending initiative (ties to the lower
// entity id) and gives each actor one turn. Player turns suspend on a
// single-resolution waiter that an action submission, the turn timeout or a
// disconnect resolves; NPC turns are left to systems reacting to
// turn_start.
package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

var (
	ErrNoPendingTurn = errors.New("no pending turn for actor")
	ErrInvalidState  = errors.New("invalid scheduler state")
)

const (
	StateIdle           = "idle"
	StateRoundActive    = "round_active"
	StateAwaitingAction = "awaiting_action"
	StateResolving      = "resolving"
	StateRoundEnding    = "round_ending"
)

const (
	evStartRound  = "start_round"
	evAwait       = "await"
	evResolve     = "resolve"
	evFinishTurn  = "finish_turn"
	evEndRound    = "end_round"
	evFinishRound = "finish_round"
	evAbort       = "abort"
)

// Request is an action submitted for a player turn. The actor argument is
// always overwritten with the submitting actor.
type Request struct {
	Name string         `json:"action"`
	Args map[string]any `json:"args,omitempty"`
}

type ActionRunner interface {
	Run(ctx context.Context, name string, args map[string]any) event.Event
}

type Dispatcher interface {
	Queue(ctx context.Context, ev event.Event) error
	ClearHistory()
}

type Status struct {
	State    string        `json:"state"`
	Round    int           `json:"round"`
	Index    int           `json:"index"`
	Order    []Actor       `json:"order"`
	Awaiting *store.Entity `json:"awaiting,omitempty"`
}

type Option func(*Scheduler)

func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m ports.TurnMetrics) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithActorArg names the action argument that receives the acting entity.
func WithActorArg(name string) Option {
	return func(s *Scheduler) { s.actorArg = name }
}

type Scheduler struct {
	roster   Roster
	actions  ActionRunner
	events   Dispatcher
	timeout  time.Duration
	actorArg string
	logger   zerolog.Logger
	metrics  ports.TurnMetrics
	machine  *fsm.FSM

	mu      sync.Mutex
	round   int
	order   []Actor
	index   int
	waiters map[store.Entity]*waiter
}

func NewScheduler(roster Roster, actions ActionRunner, events Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		roster:   roster,
		actions:  actions,
		events:   events,
		timeout:  30 * time.Second,
		actorArg: "actor",
		logger:   zerolog.Nop(),
		metrics:  nopMetrics{},
		waiters:  make(map[store.Entity]*waiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: evStartRound, Src: []string{StateIdle}, Dst: StateRoundActive},
			{Name: evAwait, Src: []string{StateRoundActive}, Dst: StateAwaitingAction},
			{Name: evResolve, Src: []string{StateRoundActive, StateAwaitingAction}, Dst: StateResolving},
			{Name: evFinishTurn, Src: []string{StateResolving}, Dst: StateRoundActive},
			{Name: evEndRound, Src: []string{StateRoundActive}, Dst: StateRoundEnding},
			{Name: evFinishRound, Src: []string{StateRoundEnding}, Dst: StateIdle},
			{Name: evAbort, Src: []string{StateRoundActive, StateAwaitingAction, StateResolving, StateRoundEnding}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.logger.Debug().Str("from", e.Src).Str("to", e.Dst).Str("event", e.Event).Msg("scheduler transition")
			},
		},
	)
	return s
}

// transition is never cancelled: a cancelled round still has to reach a
// consistent state before it is aborted.
func (s *Scheduler) transition(ctx context.Context, name string) error {
	if err := s.machine.Event(context.WithoutCancel(ctx), name); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", ErrInvalidState, name, s.machine.Current(), err)
	}
	return nil
}

func (s *Scheduler) State() string { return s.machine.Current() }

// StartRound snapshots the roster and emits round_start. Turns are then
// played one at a time with NextTurn.
func (s *Scheduler) StartRound(ctx context.Context) error {
	if err := s.transition(ctx, evStartRound); err != nil {
		return err
	}
	actors := order(s.roster.Actors())

	s.mu.Lock()
	s.round++
	s.order = actors
	s.index = 0
	round := s.round
	s.mu.Unlock()

	ids := make([]store.Entity, 0, len(actors))
	for _, a := range actors {
		ids = append(ids, a.ID)
	}
	s.metrics.RecordRound(round)
	s.logger.Info().Int("round", round).Int("actors", len(actors)).Msg("round started")
	return s.events.Queue(ctx, event.New(event.KindRound, event.RoundStart, fmt.Sprintf("Round %d begins", round), map[string]any{
		event.DetailRound: round,
		"order":           ids,
	}))
}

// NextTurn plays the turn at the current index and advances it. It reports
// false once every actor in the round has had its turn. Actors that no
// longer exist are skipped.
func (s *Scheduler) NextTurn(ctx context.Context) (bool, error) {
	actor, round, ok := s.nextActor()
	if !ok {
		return false, nil
	}

	// The waiter exists before turn_start is published so a subscriber may
	// answer the turn as soon as it sees it.
	var w *waiter
	if actor.Player {
		w = newWaiter(actor.ID)
		s.register(w)
	}

	details := map[string]any{event.DetailActor: actor.ID, event.DetailRound: round, "player": actor.Player}
	if err := s.events.Queue(ctx, event.New(event.KindTurn, event.TurnStart, fmt.Sprintf("Turn of %d", actor.ID), details)); err != nil {
		if w != nil {
			s.unregister(w)
		}
		return false, err
	}

	var (
		kind outcomeKind
		err  error
	)
	if actor.Player {
		kind, err = s.playerTurn(ctx, actor, w)
	} else {
		if err = s.transition(ctx, evResolve); err == nil {
			kind = outcomeNPC
		}
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.index++
	s.mu.Unlock()
	s.metrics.RecordTurn(uint32(actor.ID), kind == outcomeTimeout)

	endErr := s.events.Queue(ctx, event.New(event.KindTurn, event.TurnEnd, fmt.Sprintf("Turn of %d ends", actor.ID), map[string]any{
		event.DetailActor: actor.ID,
		event.DetailRound: round,
		"outcome":         string(kind),
	}))
	if err := s.transition(ctx, evFinishTurn); err != nil {
		return false, err
	}
	return true, endErr
}

func (s *Scheduler) nextActor() (Actor, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.index < len(s.order) {
		a := s.order[s.index]
		if s.roster.Exists(a.ID) {
			return a, s.round, true
		}
		s.logger.Info().Uint32("actor", uint32(a.ID)).Msg("skipping removed actor")
		s.index++
	}
	return Actor{}, s.round, false
}

func (s *Scheduler) playerTurn(ctx context.Context, actor Actor, w *waiter) (outcomeKind, error) {
	if err := s.transition(ctx, evAwait); err != nil {
		s.unregister(w)
		return "", err
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var o outcome
	select {
	case o = <-w.ch:
	case <-timer.C:
		s.resolve(actor.ID, outcome{kind: outcomeTimeout})
		o = <-w.ch
	case <-ctx.Done():
		s.resolve(actor.ID, outcome{kind: outcomeCancelled})
		o = <-w.ch
	}

	if err := s.transition(ctx, evResolve); err != nil {
		s.reply(o, event.Event{})
		return "", err
	}
	switch o.kind {
	case outcomeAction:
		args := make(map[string]any, len(o.req.Args)+1)
		for k, v := range o.req.Args {
			args[k] = v
		}
		args[s.actorArg] = actor.ID
		ev := s.actions.Run(ctx, o.req.Name, args).Stamp(time.Now())
		err := s.events.Queue(ctx, ev)
		s.reply(o, ev)
		if err != nil {
			return "", err
		}
	case outcomeTimeout:
		s.logger.Info().Uint32("actor", uint32(actor.ID)).Dur("timeout", s.timeout).Msg("turn timed out")
		if err := s.events.Queue(ctx, event.New(event.KindSystem, event.TurnTimeout, fmt.Sprintf("%d ran out of time", actor.ID), map[string]any{
			event.DetailActor: actor.ID,
		})); err != nil {
			return "", err
		}
	case outcomeDisconnected:
		s.logger.Info().Uint32("actor", uint32(actor.ID)).Msg("actor disconnected during turn")
		if err := s.events.Queue(ctx, event.New(event.KindSystem, event.ActorDisconnected, fmt.Sprintf("%d disconnected", actor.ID), map[string]any{
			event.DetailActor: actor.ID,
		})); err != nil {
			return "", err
		}
	case outcomeCancelled:
		return "", ctx.Err()
	}
	return o.kind, nil
}

func (s *Scheduler) reply(o outcome, ev event.Event) {
	if o.reply != nil {
		o.reply <- ev
	}
}

// EndRound emits round_end, clears the round's history and returns to idle.
func (s *Scheduler) EndRound(ctx context.Context) error {
	if err := s.transition(ctx, evEndRound); err != nil {
		return err
	}
	s.mu.Lock()
	round := s.round
	s.mu.Unlock()

	err := s.events.Queue(ctx, event.New(event.KindRound, event.RoundEnd, fmt.Sprintf("Round %d ends", round), map[string]any{
		event.DetailRound: round,
	}))
	s.events.ClearHistory()
	if terr := s.transition(ctx, evFinishRound); terr != nil {
		return terr
	}
	return err
}

// PlayRound runs a whole round. On error the round is abandoned and the
// scheduler returns to idle. A caller driving NextTurn by hand owns that
// cleanup itself.
func (s *Scheduler) PlayRound(ctx context.Context) error {
	if err := s.StartRound(ctx); err != nil {
		if !errors.Is(err, ErrInvalidState) {
			s.abort(ctx)
		}
		return err
	}
	for {
		more, err := s.NextTurn(ctx)
		if err != nil {
			s.abort(ctx)
			return err
		}
		if !more {
			break
		}
	}
	return s.EndRound(ctx)
}

// Abort abandons the current round, cancelling any suspended turn.
func (s *Scheduler) Abort(ctx context.Context) { s.abort(ctx) }

func (s *Scheduler) abort(ctx context.Context) {
	s.mu.Lock()
	pending := s.waiters
	s.waiters = make(map[store.Entity]*waiter)
	s.mu.Unlock()
	for _, w := range pending {
		w.ch <- outcome{kind: outcomeCancelled}
	}
	from := s.machine.Current()
	if from == StateIdle {
		return
	}
	_ = s.machine.Event(context.WithoutCancel(ctx), evAbort)
	s.logger.Warn().Str("state", from).Msg("round aborted")
}

// SubmitPlayerAction resolves actor's suspended turn with req and blocks
// until the core has applied it. It fails with ErrNoPendingTurn when the
// actor is not being waited on, including when another outcome already
// resolved the turn.
func (s *Scheduler) SubmitPlayerAction(ctx context.Context, actor store.Entity, req Request) (event.Event, error) {
	reply := make(chan event.Event, 1)
	if !s.resolve(actor, outcome{kind: outcomeAction, req: req, reply: reply}) {
		return event.Event{}, fmt.Errorf("%w: %d", ErrNoPendingTurn, actor)
	}
	select {
	case ev := <-reply:
		return ev, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// NotifyDisconnect ends actor's suspended turn without an action. It
// reports whether a turn was waiting; calling it otherwise is a no-op.
func (s *Scheduler) NotifyDisconnect(actor store.Entity) bool {
	return s.resolve(actor, outcome{kind: outcomeDisconnected})
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State: s.machine.Current(),
		Round: s.round,
		Index: s.index,
		Order: append([]Actor(nil), s.order...),
	}
	for id := range s.waiters {
		st.Awaiting = &id
	}
	return st
}

type nopMetrics struct{}

func (nopMetrics) RecordTurn(uint32, bool) {}
func (nopMetrics) RecordRound(int)         {}
