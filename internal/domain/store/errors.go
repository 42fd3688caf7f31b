package store

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaViolation  = errors.New("schema violation")
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownRelation  = errors.New("unknown relation")
	ErrDuplicateName    = errors.New("duplicate registration")
)

// SchemaViolationError reports which field of which table rejected a write.
type SchemaViolationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, e.Table, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrSchemaViolation, e.Table, e.Field, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error {
	return ErrSchemaViolation
}

func unknownComponent(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownComponent, name)
}

func unknownRelation(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownRelation, name)
}
