package action

import (
	"errors"
	"fmt"
	"strings"

	"turnkeep/internal/domain/store"
)

var (
	ErrArgumentSchemaViolation = errors.New("argument schema violation")
	ErrMissingRoom             = errors.New("missing room")
	ErrMissingComponent        = errors.New("missing component")
	ErrMissingRelation         = errors.New("missing relation")
	ErrNotRelationTarget       = errors.New("not relation target")
	ErrInvalidValue            = errors.New("invalid value")
	ErrEffectFailure           = errors.New("effect failure")
	ErrUnknownAction           = errors.New("unknown action")
	ErrInvalidDefinition       = errors.New("invalid action definition")
	ErrDuplicateAction         = errors.New("duplicate action")
)

const (
	CodeArgumentSchemaViolation = "argument_schema_violation"
	CodeMissingRoom             = "missing_room"
	CodeMissingComponent        = "missing_component"
	CodeMissingRelation         = "missing_relation"
	CodeNotRelationTarget       = "not_relation_target"
	CodeInvalidValue            = "invalid_value"
	CodeEffectFailure           = "effect_failure"
	CodeUnknownAction           = "unknown_action"
)

// ErrorCode maps an action error to the stable code carried in
// details.error_code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEffectFailure):
		return CodeEffectFailure
	case errors.Is(err, ErrArgumentSchemaViolation):
		return CodeArgumentSchemaViolation
	case errors.Is(err, ErrMissingRoom):
		return CodeMissingRoom
	case errors.Is(err, ErrMissingComponent):
		return CodeMissingComponent
	case errors.Is(err, ErrMissingRelation):
		return CodeMissingRelation
	case errors.Is(err, ErrNotRelationTarget):
		return CodeNotRelationTarget
	case errors.Is(err, ErrInvalidValue):
		return CodeInvalidValue
	case errors.Is(err, ErrUnknownAction):
		return CodeUnknownAction
	default:
		return CodeEffectFailure
	}
}

type detailer interface {
	details() map[string]any
}

type ArgumentSchemaViolationError struct {
	Field  string
	Reason string
}

func (e *ArgumentSchemaViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrArgumentSchemaViolation, e.Field, e.Reason)
}

func (e *ArgumentSchemaViolationError) Unwrap() error { return ErrArgumentSchemaViolation }

func (e *ArgumentSchemaViolationError) details() map[string]any {
	return map[string]any{"field": e.Field}
}

type MissingRoomError struct {
	Actor store.Entity
}

func (e *MissingRoomError) Error() string {
	return fmt.Sprintf("%s: actor %d is not inside a room", ErrMissingRoom, e.Actor)
}

func (e *MissingRoomError) Unwrap() error { return ErrMissingRoom }

func (e *MissingRoomError) details() map[string]any {
	return map[string]any{"field": "room"}
}

type MissingComponentError struct {
	Arg       string
	Entity    store.Entity
	Component string
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("%s: %s (entity %d) has no %s", ErrMissingComponent, e.Arg, e.Entity, e.Component)
}

func (e *MissingComponentError) Unwrap() error { return ErrMissingComponent }

func (e *MissingComponentError) details() map[string]any {
	return map[string]any{"argument": e.Arg, "entity": e.Entity, "component": e.Component}
}

type MissingRelationError struct {
	Arg      string
	Entity   store.Entity
	Relation string
}

func (e *MissingRelationError) Error() string {
	return fmt.Sprintf("%s: %s (entity %d) has no %s relation", ErrMissingRelation, e.Arg, e.Entity, e.Relation)
}

func (e *MissingRelationError) Unwrap() error { return ErrMissingRelation }

func (e *MissingRelationError) details() map[string]any {
	return map[string]any{"argument": e.Arg, "entity": e.Entity, "relation": e.Relation}
}

type NotRelationTargetError struct {
	Arg      string
	Entity   store.Entity
	Relation string
	Source   string
}

func (e *NotRelationTargetError) Error() string {
	return fmt.Sprintf("%s: %s (entity %d) is not a %s target of %s", ErrNotRelationTarget, e.Arg, e.Entity, e.Relation, e.Source)
}

func (e *NotRelationTargetError) Unwrap() error { return ErrNotRelationTarget }

func (e *NotRelationTargetError) details() map[string]any {
	return map[string]any{"argument": e.Arg, "entity": e.Entity, "relation": e.Relation, "source": e.Source}
}

type InvalidValueError struct {
	Arg     string
	Value   any
	Options []any
}

func (e *InvalidValueError) Error() string {
	opts := make([]string, 0, len(e.Options))
	for _, o := range e.Options {
		opts = append(opts, fmt.Sprint(o))
	}
	return fmt.Sprintf("%s: %v for %s (valid: %s)", ErrInvalidValue, e.Value, e.Arg, strings.Join(opts, ", "))
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }

func (e *InvalidValueError) details() map[string]any {
	return map[string]any{"argument": e.Arg, "value": e.Value, "valid_options": e.Options}
}

type EffectFailureError struct {
	Err error
}

func (e *EffectFailureError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEffectFailure, e.Err)
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *EffectFailureError) Unwrap() []error { return []error{ErrEffectFailure, e.Err} }

func unknownAction(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func invalidDefinition(name, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, name, fmt.Sprintf(format, args...))
}
