package store

import (
	"fmt"
	"math"
	"sort"
)

type FieldKind int

const (
	FieldNumber FieldKind = iota
	FieldString
	FieldEntity
)

func (k FieldKind) String() string {
	switch k {
	case FieldNumber:
		return "number"
	case FieldString:
		return "string"
	case FieldEntity:
		return "entity"
	default:
		return "unknown"
	}
}

type Field struct {
	Name     string
	Kind     FieldKind
	Optional bool
}

// Schema is the ordered field list of a component or relation. An empty
// schema turns the table into a tag.
type Schema []Field

// Value is the plain form of a row. Writes and reads use the same Go types:
// string for string fields, float64 for number fields and Entity for entity
// fields. Any other type is a schema violation, so a fully specified Value
// reads back deep-equal.
type Value map[string]any

func (v Value) String(field string) string {
	s, _ := v[field].(string)
	return s
}

func (v Value) Number(field string) float64 {
	n, _ := v[field].(float64)
	return n
}

func (v Value) Entity(field string) Entity {
	e, _ := v[field].(Entity)
	return e
}

func (s Schema) index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) validateDecl(table string) error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if f.Name == "" {
			return &SchemaViolationError{Table: table, Reason: "empty field name"}
		}
		if seen[f.Name] {
			return &SchemaViolationError{Table: table, Field: f.Name, Reason: "declared twice"}
		}
		seen[f.Name] = true
	}
	return nil
}

// row is the physical representation: one float64 slot per schema field,
// strings stored as interning handles.
type row []float64

// encode validates partial against the schema and merges it into prev (nil
// for a first write). The returned row is a fresh slice.
func (s Schema) encode(table string, prev row, partial Value, strs *StringTable) (row, error) {
	for name := range partial {
		if s.index(name) < 0 {
			return nil, &SchemaViolationError{Table: table, Field: name, Reason: "unknown field"}
		}
	}
	if prev == nil {
		for _, f := range s {
			if _, ok := partial[f.Name]; !ok && !f.Optional {
				return nil, &SchemaViolationError{Table: table, Field: f.Name, Reason: "required field missing"}
			}
		}
	}

	out := make(row, len(s))
	copy(out, prev)
	if prev == nil {
		for i, f := range s {
			if f.Kind == FieldString {
				out[i] = float64(strs.Intern(""))
			}
		}
	}
	// deterministic order so interning handles do not depend on map iteration
	names := make([]string, 0, len(partial))
	for name := range partial {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		i := s.index(name)
		f := s[i]
		raw := partial[name]
		switch f.Kind {
		case FieldString:
			str, ok := raw.(string)
			if !ok {
				return nil, &SchemaViolationError{Table: table, Field: name, Reason: fmt.Sprintf("want string, got %T", raw)}
			}
			out[i] = float64(strs.Intern(str))
		case FieldNumber:
			n, ok := raw.(float64)
			if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, &SchemaViolationError{Table: table, Field: name, Reason: fmt.Sprintf("want finite float64, got %T", raw)}
			}
			out[i] = n
		case FieldEntity:
			id, ok := raw.(Entity)
			if !ok {
				return nil, &SchemaViolationError{Table: table, Field: name, Reason: fmt.Sprintf("want Entity, got %T", raw)}
			}
			out[i] = float64(id)
		}
	}
	return out, nil
}

func (s Schema) decode(r row, strs *StringTable) Value {
	out := make(Value, len(s))
	for i, f := range s {
		switch f.Kind {
		case FieldString:
			str, _ := strs.Lookup(uint32(r[i]))
			out[f.Name] = str
		case FieldEntity:
			out[f.Name] = Entity(r[i])
		default:
			out[f.Name] = r[i]
		}
	}
	return out
}
