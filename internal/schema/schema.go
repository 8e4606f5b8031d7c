// Package schema defines the fixed field registry a store file must conform
// to: ordered fields, their value types, and the closed value domains of
// categorical fields.
//
// A Schema is an immutable value constructed once and passed explicitly into
// every component that needs it. Nothing in this package reads ambient or
// process-wide state, so tests can validate against alternate registries
// without touching the deployment schema.
package schema

import (
	"fmt"
	"strings"
)

// Type is the semantic value type of a field.
type Type string

const (
	// Date holds a calendar date (no time-of-day component).
	Date Type = "date"
	// Text holds free-form text.
	Text Type = "text"
	// Categorical holds text restricted to a closed domain of canonical values.
	Categorical Type = "categorical"
)

// Field describes one column of the registry.
type Field struct {
	// Name is the canonical column name.
	Name string

	// Type is the semantic value type.
	Type Type

	// Domain lists the allowed canonical values for a Categorical field, in
	// declaration order. Empty for other types.
	Domain []string

	// Layout is the date layout accepted on ingest for a Date field. When
	// empty, ISO (2006-01-02) is used.
	Layout string
}

// Normalized reports whether values of this field are subject to string
// normalization. Free text and categoricals are; dates are not.
func (f Field) Normalized() bool {
	return f.Type == Text || f.Type == Categorical
}

// InDomain reports whether v is a member of the field's closed domain.
// Always false for non-categorical fields.
func (f Field) InDomain(v string) bool {
	for _, d := range f.Domain {
		if d == v {
			return true
		}
	}
	return false
}

// Schema is an ordered, immutable field registry.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New builds a Schema from the given fields. Field order is preserved and
// becomes the declared column order of every conforming table. It returns an
// error on duplicate or empty field names, or a Categorical field without a
// domain.
func New(fields []Field) (Schema, error) {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return Schema{}, fmt.Errorf("schema: field %d has empty name", i)
		}
		if _, dup := idx[f.Name]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		if f.Type == Categorical && len(f.Domain) == 0 {
			return Schema{}, fmt.Errorf("schema: categorical field %q has empty domain", f.Name)
		}
		idx[f.Name] = i
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Schema{fields: cp, index: idx}, nil
}

// MustNew is New for statically-known registries; it panics on error.
func MustNew(fields []Field) Schema {
	s, err := New(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of declared fields.
func (s Schema) Len() int { return len(s.fields) }

// Field returns the field at declaration position i.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Fields returns the declared fields in order. The returned slice is a copy.
func (s Schema) Fields() []Field {
	cp := make([]Field, len(s.fields))
	copy(cp, s.fields)
	return cp
}

// Lookup returns the field with the given name and its declaration position.
func (s Schema) Lookup(name string) (Field, int, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, -1, false
	}
	return s.fields[i], i, true
}

// Names returns the declared field names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Equal reports whether two schemas declare the same fields, in the same
// order, with the same types and domains. Layout is an ingest concern and
// does not participate in equality.
func (s Schema) Equal(other Schema) bool {
	if len(s.fields) != len(other.fields) {
		return false
	}
	for i, f := range s.fields {
		g := other.fields[i]
		if f.Name != g.Name || f.Type != g.Type {
			return false
		}
		if len(f.Domain) != len(g.Domain) {
			return false
		}
		for j := range f.Domain {
			if f.Domain[j] != g.Domain[j] {
				return false
			}
		}
	}
	return true
}

// String renders the registry as "name:type" pairs for diagnostics.
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + string(f.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
