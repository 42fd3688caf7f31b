// Package pipeline dispatches events to prioritised systems.
//
// Dispatch order is depth-first in producing order: every system matching an
// event runs (ascending priority, registration order on ties) and its
// follow-ups are collected; then each follow-up is dispatched completely,
// including its own follow-ups, before the next sibling follow-up starts.
// The traversal uses an explicit stack so deep chains do not grow the Go
// stack.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"turnkeep/internal/domain/event"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidSystem   = errors.New("invalid system")
	ErrDuplicateSystem = errors.New("duplicate system")
)

// Handler reacts to one event and may return follow-up events. A returned
// error is logged and the handler's follow-ups are dropped.
type Handler func(ctx context.Context, ev event.Event) ([]event.Event, error)

type System struct {
	Name     string
	Priority int
	// Events restricts the system to these event names. Empty means all.
	Events []string
	Handle Handler
}

func (s System) accepts(name string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, n := range s.Events {
		if n == name {
			return true
		}
	}
	return false
}

// Listener observes every dispatched event in dispatch order. Listeners run
// on the dispatching goroutine and must not block.
type Listener func(event.Event)

type Option func(*Pipeline)

func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

type subscription struct {
	id uint64
	fn Listener
}

type Pipeline struct {
	systems []System
	logger  zerolog.Logger
	now     func() time.Time
	tracer  trace.Tracer

	mu        sync.RWMutex
	history   []event.Event
	listeners []subscription
	nextSub   uint64
}

// New builds a pipeline from the complete system list. The list is fixed for
// the pipeline's lifetime.
func New(systems []System, opts ...Option) (*Pipeline, error) {
	seen := make(map[string]bool, len(systems))
	sorted := make([]System, 0, len(systems))
	for _, sys := range systems {
		if sys.Name == "" || sys.Handle == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSystem, sys.Name)
		}
		if seen[sys.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSystem, sys.Name)
		}
		seen[sys.Name] = true
		sorted = append(sorted, sys)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	p := &Pipeline{
		systems: sorted,
		logger:  zerolog.Nop(),
		now:     time.Now,
		tracer:  otel.Tracer("turnkeep/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Queue dispatches ev and everything it causes. It returns only when the
// pipeline is quiescent again, or early with ctx's error.
func (p *Pipeline) Queue(ctx context.Context, ev event.Event) error {
	stack := []event.Event{ev}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cur, ok := p.record(cur)
		if !ok {
			continue
		}
		followUps := p.dispatch(ctx, cur)
		if cur.IsTurnEnd() {
			if len(followUps) > 0 {
				p.logger.Debug().Str("event_id", cur.ID).Int("discarded", len(followUps)).Msg("turn_end follow-ups discarded")
			}
			continue
		}
		for i := len(followUps) - 1; i >= 0; i-- {
			stack = append(stack, followUps[i])
		}
	}
	return nil
}

func (p *Pipeline) record(ev event.Event) (event.Event, bool) {
	if ev.Kind == "" {
		ev.Kind = event.KindSystem
	}
	if ev.Name == "" || !ev.Kind.Valid() {
		p.logger.Error().Str("name", ev.Name).Str("kind", string(ev.Kind)).Msg("dropping malformed event")
		return ev, false
	}
	ev = ev.Stamp(p.now())

	p.mu.Lock()
	p.history = append(p.history, ev)
	listeners := make([]subscription, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, sub := range listeners {
		p.publish(sub, ev)
	}
	return ev, true
}

func (p *Pipeline) publish(sub subscription, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Uint64("subscriber", sub.id).Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	sub.fn(ev)
}

func (p *Pipeline) dispatch(ctx context.Context, ev event.Event) []event.Event {
	ctx, span := p.tracer.Start(ctx, "pipeline.dispatch", trace.WithAttributes(
		attribute.String("event.name", ev.Name),
		attribute.String("event.kind", string(ev.Kind)),
	))
	defer span.End()

	var out []event.Event
	for _, sys := range p.systems {
		if !sys.accepts(ev.Name) {
			continue
		}
		out = append(out, p.invoke(ctx, sys, ev)...)
	}
	span.SetAttributes(attribute.Int("event.follow_ups", len(out)))
	return out
}

func (p *Pipeline) invoke(ctx context.Context, sys System, ev event.Event) (out []event.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("system", sys.Name).Str("event", ev.Name).Interface("panic", r).Msg("system panicked")
			out = nil
		}
	}()
	res, err := sys.Handle(ctx, ev)
	if err != nil {
		p.logger.Error().Err(err).Str("system", sys.Name).Str("event", ev.Name).Msg("system failed")
		return nil
	}
	return res
}

// Subscribe registers l and returns a function that removes it.
func (p *Pipeline) Subscribe(l Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.listeners = append(p.listeners, subscription{id: id, fn: l})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.listeners {
			if sub.id == id {
				p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
				return
			}
		}
	}
}

func (p *Pipeline) History() []event.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]event.Event, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Pipeline) ClearHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
}

// Systems lists system names in invocation order.
func (p *Pipeline) Systems() []string {
	out := make([]string, 0, len(p.systems))
	for _, sys := range p.systems {
		out = append(out, sys.Name)
	}
	return out
}
