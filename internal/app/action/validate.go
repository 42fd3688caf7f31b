package action

import (
	"fmt"
	"sort"

	"turnkeep/internal/domain/store"
)

type runContext struct {
	def  Definition
	args map[string]any
}

type validateStep func(rc *runContext) error

func (r *Registry) validate(def Definition, raw map[string]any) (Input, error) {
	rc := &runContext{def: def, args: make(map[string]any, len(raw)+1)}
	for k, v := range raw {
		rc.args[k] = v
	}
	for _, step := range []validateStep{r.deriveRoom, r.checkSchema, r.checkRequirements} {
		if err := step(rc); err != nil {
			return Input{}, err
		}
	}
	return Input{Action: def.Name, Store: r.store, Args: rc.args}, nil
}

// deriveRoom replaces any caller-supplied room with the room that contains
// the actor. When none is found the room stays absent and checkSchema
// reports it.
func (r *Registry) deriveRoom(rc *runContext) error {
	if !rc.def.IncludeActorRoom {
		return nil
	}
	delete(rc.args, r.cfg.RoomArg)
	actor, ok := toEntity(rc.args[r.cfg.ActorArg])
	if !ok {
		return nil
	}
	if room, ok := r.roomOf(actor); ok {
		rc.args[r.cfg.RoomArg] = room
	}
	return nil
}

func (r *Registry) roomOf(actor store.Entity) (store.Entity, bool) {
	contains, err := r.store.Relation(r.cfg.ContainsRelation)
	if err != nil {
		return 0, false
	}
	rooms, err := r.store.Component(r.cfg.RoomComponent)
	if err != nil {
		return 0, false
	}
	for _, target := range contains.Targets(actor) {
		if rooms.Has(target) {
			return target, true
		}
	}
	return 0, false
}

func (r *Registry) checkSchema(rc *runContext) error {
	names := make([]string, 0, len(rc.args))
	for name := range rc.args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := rc.def.arg(name); !ok {
			return &ArgumentSchemaViolationError{Field: name, Reason: "unknown argument"}
		}
	}

	for _, a := range rc.def.Args {
		raw, present := rc.args[a.Name]
		if !present || (raw == nil && a.Type != ArgNullableEntity) {
			delete(rc.args, a.Name)
			if rc.def.IncludeActorRoom && a.Name == r.cfg.RoomArg {
				actor, _ := toEntity(rc.args[r.cfg.ActorArg])
				return &MissingRoomError{Actor: actor}
			}
			if a.Required {
				return &ArgumentSchemaViolationError{Field: a.Name, Reason: "required argument missing"}
			}
			continue
		}
		v, ok := coerce(a.Type, raw)
		if !ok {
			return &ArgumentSchemaViolationError{
				Field:  a.Name,
				Reason: fmt.Sprintf("expected %s, got %T", a.Type, raw),
			}
		}
		rc.args[a.Name] = v
	}
	return nil
}

func (r *Registry) checkRequirements(rc *runContext) error {
	for _, req := range rc.def.Requirements {
		v, ok := rc.args[req.Arg]
		if !ok || v == nil {
			continue
		}
		if err := r.checkRule(rc, req.Arg, v, req.Rule); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) checkRule(rc *runContext, arg string, v any, rule Rule) error {
	e, isEntity := v.(store.Entity)
	if isEntity {
		for _, name := range rule.Components {
			comp, err := r.store.Component(name)
			if err != nil || !comp.Has(e) {
				return &MissingComponentError{Arg: arg, Entity: e, Component: name}
			}
		}
		for _, name := range rule.Relations {
			rel, err := r.store.Relation(name)
			if err != nil || len(rel.Targets(e)) == 0 {
				return &MissingRelationError{Arg: arg, Entity: e, Relation: name}
			}
		}
		if src := rule.TargetOf; src != nil {
			rel, err := r.store.Relation(src.Relation)
			source, ok := rc.args[src.Source].(store.Entity)
			if err != nil || !ok || !rel.Has(source, e) {
				return &NotRelationTargetError{Arg: arg, Entity: e, Relation: src.Relation, Source: src.Source}
			}
		}
	}
	if vals := rule.OneOf; vals != nil {
		options := r.relationValues(rc, vals)
		for _, o := range options {
			if o == v {
				return nil
			}
		}
		return &InvalidValueError{Arg: arg, Value: v, Options: options}
	}
	return nil
}

// relationValues returns the distinct Field values on every relation row
// leaving the source entity, sorted.
func (r *Registry) relationValues(rc *runContext, vals *RelationValues) []any {
	out := []any{}
	rel, err := r.store.Relation(vals.Relation)
	if err != nil {
		return out
	}
	source, ok := rc.args[vals.Source].(store.Entity)
	if !ok {
		return out
	}
	seen := make(map[any]bool)
	for _, target := range rel.Targets(source) {
		data, ok := rel.Data(source, target)
		if !ok {
			continue
		}
		val, ok := data[vals.Field]
		if !ok || seen[val] {
			continue
		}
		seen[val] = true
		out = append(out, val)
	}
	sort.Slice(out, func(i, j int) bool { return lessValue(out[i], out[j]) })
	return out
}

func lessValue(a, b any) bool {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case store.Entity:
		if y, ok := b.(store.Entity); ok {
			return x < y
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
