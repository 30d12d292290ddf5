package schema

import (
	"errors"
	"iter"

	"github.com/rotisserie/eris"
)

var (
	// ErrNoGeometry is returned when a schema declares no Point field.
	ErrNoGeometry = errors.New("schema: no point field")
	// ErrMultipleGeometry is returned when a schema declares more than one Point field.
	ErrMultipleGeometry = errors.New("schema: more than one point field")
)

// Record is a single event keyed by field name.
type Record map[string]any

// Field is a named, typed entry of a TypeSchema.
type Field struct {
	Name string    `yaml:"name"`
	Type ValueType `yaml:"type"`
}

// TypeSchema is an ordered, immutable mapping from field name to ValueType.
type TypeSchema struct {
	fields []Field
	index  map[string]int
}

// New builds a TypeSchema from fields in the given order. Names must be
// non-empty and unique. Geometry constraints are checked by GeometryField.
func New(fields ...Field) (*TypeSchema, error) {
	s := &TypeSchema{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, eris.Errorf("schema: field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, eris.Errorf("schema: duplicate field %q", f.Name)
		}
		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed tables.
func MustNew(fields ...Field) *TypeSchema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// All iterates over (name, type) pairs in insertion order.
func (s *TypeSchema) All() iter.Seq2[string, ValueType] {
	return func(yield func(string, ValueType) bool) {
		for _, f := range s.fields {
			if !yield(f.Name, f.Type) {
				return
			}
		}
	}
}

// Fields returns a copy of the fields in insertion order.
func (s *TypeSchema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the field names in insertion order.
func (s *TypeSchema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields.
func (s *TypeSchema) Len() int { return len(s.fields) }

// Lookup returns the type of the named field.
func (s *TypeSchema) Lookup(name string) (ValueType, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.fields[i].Type, true
}

// GeometryField returns the name of the single Point field.
func (s *TypeSchema) GeometryField() (string, error) {
	var name string
	for _, f := range s.fields {
		if f.Type != Point {
			continue
		}
		if name != "" {
			return "", eris.Wrapf(ErrMultipleGeometry, "%q and %q", name, f.Name)
		}
		name = f.Name
	}
	if name == "" {
		return "", eris.Wrap(ErrNoGeometry, "geometry field")
	}
	return name, nil
}
