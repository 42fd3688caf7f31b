package action

import (
	"context"
	"math"

	"turnkeep/internal/domain/event"
	"turnkeep/internal/domain/store"
)

type ArgType string

const (
	ArgEntity         ArgType = "entity"
	ArgNullableEntity ArgType = "nullable_entity"
	ArgString         ArgType = "string"
	ArgNumber         ArgType = "number"
	ArgBool           ArgType = "bool"
)

func (t ArgType) valid() bool {
	switch t {
	case ArgEntity, ArgNullableEntity, ArgString, ArgNumber, ArgBool:
		return true
	}
	return false
}

func (t ArgType) isEntity() bool { return t == ArgEntity || t == ArgNullableEntity }

type Arg struct {
	Name        string
	Type        ArgType
	Required    bool
	Description string
}

// RelationSource names another entity argument whose relation must point
// at the checked entity.
type RelationSource struct {
	Relation string
	Source   string
}

// RelationValues collects Field from the data of every Relation row whose
// subject is the Source argument.
type RelationValues struct {
	Relation string
	Source   string
	Field    string
}

type Rule struct {
	Components []string
	Relations  []string
	TargetOf   *RelationSource
	OneOf      *RelationValues
}

type Requirement struct {
	Arg  string
	Rule Rule
}

// Effect applies a validated action. It may mutate the store and returns
// the event describing what happened.
type Effect func(ctx context.Context, in Input) (event.Event, error)

type Definition struct {
	Name             string
	Description      string
	Args             []Arg
	Requirements     []Requirement
	IncludeActorRoom bool
	Effect           Effect
}

func (d Definition) arg(name string) (Arg, bool) {
	for _, a := range d.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

// Input is what an effect sees after validation. Entity arguments are
// normalized to store.Entity and numbers to float64.
type Input struct {
	Action string
	Store  *store.Store
	Args   map[string]any
}

func (in Input) Entity(name string) store.Entity {
	e, _ := in.Args[name].(store.Entity)
	return e
}

func (in Input) OptionalEntity(name string) (store.Entity, bool) {
	e, ok := in.Args[name].(store.Entity)
	return e, ok
}

func (in Input) String(name string) string {
	s, _ := in.Args[name].(string)
	return s
}

func (in Input) Number(name string) float64 {
	f, _ := in.Args[name].(float64)
	return f
}

func (in Input) Bool(name string) bool {
	b, _ := in.Args[name].(bool)
	return b
}

// coerce normalizes raw to the Go type of t. The bool reports whether the
// value is acceptable at all.
func coerce(t ArgType, raw any) (any, bool) {
	switch t {
	case ArgEntity:
		e, ok := toEntity(raw)
		return e, ok
	case ArgNullableEntity:
		if raw == nil {
			return nil, true
		}
		e, ok := toEntity(raw)
		return e, ok
	case ArgString:
		s, ok := raw.(string)
		return s, ok
	case ArgNumber:
		return toNumber(raw)
	case ArgBool:
		b, ok := raw.(bool)
		return b, ok
	}
	return nil, false
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case store.Entity:
		return float64(v), true
	}
	return 0, false
}

func toEntity(raw any) (store.Entity, bool) {
	if e, ok := raw.(store.Entity); ok {
		return e, true
	}
	f, ok := toNumber(raw)
	if !ok || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return store.Entity(f), true
}
