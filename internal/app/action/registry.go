// Package action validates and runs named actions against the store.
//
// Every action runs through the same steps: derive the actor's room,
// check the argument schema, check declarative requirements, then apply
// the effect. Rejections never touch the store and are reported as
// failure events rather than Go errors.
package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"turnkeep/internal/app/ports"
	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config names the store tables and arguments room derivation relies on.
type Config struct {
	ActorArg         string
	RoomArg          string
	ContainsRelation string
	RoomComponent    string
}

func DefaultConfig() Config {
	return Config{
		ActorArg:         "actor",
		RoomArg:          "room",
		ContainsRelation: "contains",
		RoomComponent:    "room",
	}
}

type Option func(*Registry)

func WithConfig(cfg Config) Option {
	return func(r *Registry) { r.cfg = cfg }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m ports.ActionMetrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

type Registry struct {
	store   *store.Store
	cfg     Config
	logger  zerolog.Logger
	metrics ports.ActionMetrics
	tracer  trace.Tracer

	mu   sync.RWMutex
	defs map[string]Definition
}

func NewRegistry(s *store.Store, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		cfg:     DefaultConfig(),
		logger:  zerolog.Nop(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer("turnkeep/action"),
		defs:    make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds def after checking that every argument, component and
// relation it references is known. Definitions are fixed once registered.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return invalidDefinition(def.Name, "name is required")
	}
	if def.Effect == nil {
		return invalidDefinition(def.Name, "effect is required")
	}
	def.Args = append([]Arg(nil), def.Args...)
	def.Requirements = append([]Requirement(nil), def.Requirements...)

	seen := make(map[string]bool, len(def.Args))
	for _, a := range def.Args {
		if a.Name == "" {
			return invalidDefinition(def.Name, "argument without a name")
		}
		if seen[a.Name] {
			return invalidDefinition(def.Name, "argument %q declared twice", a.Name)
		}
		if !a.Type.valid() {
			return invalidDefinition(def.Name, "argument %q has unknown type %q", a.Name, a.Type)
		}
		seen[a.Name] = true
	}
	if def.IncludeActorRoom {
		if err := r.checkRoomDerivation(&def); err != nil {
			return err
		}
	}
	for _, req := range def.Requirements {
		if err := r.checkRequirementDecl(def, req); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAction, def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

func (r *Registry) checkRoomDerivation(def *Definition) error {
	actor, ok := def.arg(r.cfg.ActorArg)
	if !ok || actor.Type != ArgEntity || !actor.Required {
		return invalidDefinition(def.Name, "room derivation needs a required entity argument %q", r.cfg.ActorArg)
	}
	if _, err := r.store.Relation(r.cfg.ContainsRelation); err != nil {
		return fmt.Errorf("action %q: %w", def.Name, err)
	}
	if _, err := r.store.Component(r.cfg.RoomComponent); err != nil {
		return fmt.Errorf("action %q: %w", def.Name, err)
	}
	room, ok := def.arg(r.cfg.RoomArg)
	if !ok {
		def.Args = append(def.Args, Arg{
			Name:        r.cfg.RoomArg,
			Type:        ArgEntity,
			Required:    true,
			Description: "room containing the actor",
		})
		return nil
	}
	if room.Type != ArgEntity {
		return invalidDefinition(def.Name, "argument %q must be an entity", r.cfg.RoomArg)
	}
	return nil
}

func (r *Registry) checkRequirementDecl(def Definition, req Requirement) error {
	a, ok := def.arg(req.Arg)
	if !ok {
		return invalidDefinition(def.Name, "requirement on undeclared argument %q", req.Arg)
	}
	rule := req.Rule
	needsEntity := len(rule.Components) > 0 || len(rule.Relations) > 0 || rule.TargetOf != nil
	if needsEntity && !a.Type.isEntity() {
		return invalidDefinition(def.Name, "argument %q must be an entity to carry entity rules", req.Arg)
	}
	for _, name := range rule.Components {
		if _, err := r.store.Component(name); err != nil {
			return fmt.Errorf("action %q argument %q: %w", def.Name, req.Arg, err)
		}
	}
	for _, name := range rule.Relations {
		if _, err := r.store.Relation(name); err != nil {
			return fmt.Errorf("action %q argument %q: %w", def.Name, req.Arg, err)
		}
	}
	if src := rule.TargetOf; src != nil {
		if _, err := r.store.Relation(src.Relation); err != nil {
			return fmt.Errorf("action %q argument %q: %w", def.Name, req.Arg, err)
		}
		if s, ok := def.arg(src.Source); !ok || !s.Type.isEntity() {
			return invalidDefinition(def.Name, "source %q must be a declared entity argument", src.Source)
		}
	}
	if vals := rule.OneOf; vals != nil {
		rel, err := r.store.Relation(vals.Relation)
		if err != nil {
			return fmt.Errorf("action %q argument %q: %w", def.Name, req.Arg, err)
		}
		if s, ok := def.arg(vals.Source); !ok || !s.Type.isEntity() {
			return invalidDefinition(def.Name, "source %q must be a declared entity argument", vals.Source)
		}
		if !hasField(rel.Schema(), vals.Field) {
			return invalidDefinition(def.Name, "relation %q has no field %q", vals.Relation, vals.Field)
		}
	}
	return nil
}

func hasField(schema store.Schema, name string) bool {
	for _, f := range schema {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (r *Registry) lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Definition returns the registered definition, including a derived room
// argument if one was added.
func (r *Registry) Definition(name string) (Definition, bool) {
	return r.lookup(name)
}

// Definitions lists every registered action sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate runs every check Run performs before the effect and returns the
// normalized input. It never mutates the store.
func (r *Registry) Validate(name string, args map[string]any) (Input, error) {
	def, ok := r.lookup(name)
	if !ok {
		return Input{}, unknownAction(name)
	}
	return r.validate(def, args)
}

// Run validates and applies the named action. The returned event always
// carries details.success; rejected and failed actions carry error and
// error_code as well and leave the store untouched by this call.
func (r *Registry) Run(ctx context.Context, name string, args map[string]any) event.Event {
	ctx, span := r.tracer.Start(ctx, "action.run", trace.WithAttributes(attribute.String("action.name", name)))
	defer span.End()

	def, ok := r.lookup(name)
	if !ok {
		return r.reject(span, name, args, unknownAction(name))
	}
	in, err := r.validate(def, args)
	if err != nil {
		return r.reject(span, name, args, err)
	}

	ev, err := r.execute(ctx, def, in)
	if err != nil {
		err = &EffectFailureError{Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordFailure(name)
		r.logger.Error().Err(err).Str("action", name).Msg("action effect failed")
		return r.failure(name, args, err)
	}

	ev = r.complete(def, in, ev)
	if ev.Success() {
		r.metrics.RecordSuccess(name)
	} else {
		r.metrics.RecordFailure(name)
	}
	span.SetAttributes(attribute.Bool("action.success", ev.Success()))
	r.logger.Debug().Str("action", name).Bool("success", ev.Success()).Msg("action applied")
	return ev
}

func (r *Registry) execute(ctx context.Context, def Definition, in Input) (ev event.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return def.Effect(ctx, in)
}

// complete fills the parts of an effect's event it is allowed to leave out.
func (r *Registry) complete(def Definition, in Input, ev event.Event) event.Event {
	if ev.Kind == "" {
		ev.Kind = event.KindAction
	}
	if ev.Name == "" {
		ev.Name = def.Name
	}
	if _, ok := ev.Details[event.DetailSuccess]; !ok {
		ev = ev.With(event.DetailSuccess, true)
	}
	if _, ok := ev.Details[event.DetailActor]; !ok {
		if actor, ok := in.OptionalEntity(r.cfg.ActorArg); ok {
			ev = ev.With(event.DetailActor, actor)
		}
	}
	return ev
}

func (r *Registry) reject(span trace.Span, name string, args map[string]any, err error) event.Event {
	code := ErrorCode(err)
	span.SetAttributes(attribute.String("action.error_code", code))
	r.metrics.RecordRejected(name, code)
	r.logger.Debug().Err(err).Str("action", name).Str("error_code", code).Msg("action rejected")
	return r.failure(name, args, err)
}

func (r *Registry) failure(name string, args map[string]any, err error) event.Event {
	details := map[string]any{
		event.DetailSuccess:   false,
		event.DetailError:     err.Error(),
		event.DetailErrorCode: ErrorCode(err),
	}
	var d detailer
	if errors.As(err, &d) {
		for k, v := range d.details() {
			details[k] = v
		}
	}
	if actor, ok := toEntity(args[r.cfg.ActorArg]); ok {
		details[event.DetailActor] = actor
	}
	return event.New(event.KindAction, name, err.Error(), details)
}

type nopMetrics struct{}

func (nopMetrics) RecordSuccess(string)          {}
func (nopMetrics) RecordRejected(string, string) {}
func (nopMetrics) RecordFailure(string)          {}
