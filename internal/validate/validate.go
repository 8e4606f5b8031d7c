// Package validate holds the pure checks that compare a table against a
// schema registry.
//
// Checks never stop at the first problem: each returns the complete list of
// issues so callers decide once, with everything on the table. Issue order is
// deterministic across runs on identical input: registry declaration order
// first, then row order.
package validate

import (
	"fmt"
	"sort"

	"marketcal/internal/normalize"
	"marketcal/internal/schema"
	"marketcal/internal/table"
)

// Kind tags the category of a validation issue.
type Kind string

const (
	// ShapeMismatch marks a field missing from, or unexpected in, a table.
	ShapeMismatch Kind = "shape-mismatch"
	// CastFailure marks a value or column that cannot take the registry type.
	CastFailure Kind = "cast-failure"
	// DomainViolation marks a categorical value outside its closed domain.
	DomainViolation Kind = "domain-violation"
	// NormalizationDrift marks a stored value that differs from its canonical
	// form. Drift is the only auto-repairable kind.
	NormalizationDrift Kind = "normalization-drift"
)

// Issue is one validation finding, with enough context to report it and, for
// drift, to repair it.
type Issue struct {
	Kind  Kind
	Field string

	// Row is the zero-based row index, or -1 for table-level issues.
	Row int

	// Detail qualifies shape issues ("missing", "unexpected") and carries the
	// cast error text for cast failures.
	Detail string

	// Original is the offending stored value, Canonical its normalized
	// replacement (drift issues only).
	Original  string
	Canonical string
}

// String renders the issue for diagnostics.
func (i Issue) String() string {
	switch i.Kind {
	case ShapeMismatch:
		return fmt.Sprintf("%s: %s column %q", i.Kind, i.Detail, i.Field)
	case CastFailure:
		if i.Row >= 0 {
			return fmt.Sprintf("%s: column %q row %d: %q: %s", i.Kind, i.Field, i.Row, i.Original, i.Detail)
		}
		return fmt.Sprintf("%s: column %q: %s", i.Kind, i.Field, i.Detail)
	case DomainViolation:
		return fmt.Sprintf("%s: column %q row %d: %q not in domain", i.Kind, i.Field, i.Row, i.Original)
	case NormalizationDrift:
		return fmt.Sprintf("%s: column %q row %d: %q -> %q", i.Kind, i.Field, i.Row, i.Original, i.Canonical)
	}
	return fmt.Sprintf("%s: column %q row %d", i.Kind, i.Field, i.Row)
}

// Shape compares a table's declared field set against the registry. Missing
// fields are reported in registry order, type conflicts on shared fields as
// CastFailure, and unexpected fields in sorted order after those.
func Shape(got, want schema.Schema) []Issue {
	var issues []Issue
	for _, f := range want.Fields() {
		g, _, ok := got.Lookup(f.Name)
		if !ok {
			issues = append(issues, Issue{Kind: ShapeMismatch, Field: f.Name, Row: -1, Detail: "missing"})
			continue
		}
		if g.Type != f.Type {
			issues = append(issues, Issue{
				Kind: CastFailure, Field: f.Name, Row: -1,
				Detail: fmt.Sprintf("stored as %s, registry requires %s", g.Type, f.Type),
			})
		}
	}
	var extra []string
	for _, name := range got.Names() {
		if _, _, ok := want.Lookup(name); !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		issues = append(issues, Issue{Kind: ShapeMismatch, Field: name, Row: -1, Detail: "unexpected"})
	}
	return issues
}

// Domain checks every categorical column of t: each stored value is
// normalized, then tested for membership in the field's closed domain. Null
// cells are skipped.
func Domain(t *table.Table) []Issue {
	var issues []Issue
	sc := t.Schema()
	for i := 0; i < sc.Len(); i++ {
		f := sc.Field(i)
		if f.Type != schema.Categorical {
			continue
		}
		col := t.Column(i)
		for row := 0; row < col.Len(); row++ {
			v, ok := col.String(row)
			if !ok {
				continue
			}
			canon := normalize.Canonical(v)
			if !f.InDomain(canon) {
				issues = append(issues, Issue{
					Kind: DomainViolation, Field: f.Name, Row: row, Original: canon,
				})
			}
		}
	}
	return issues
}

// Drift checks every normalized string column of t for values that are not
// already in canonical form. A row rejected by Domain still surfaces its
// drift independently.
func Drift(t *table.Table) []Issue {
	var issues []Issue
	sc := t.Schema()
	for i := 0; i < sc.Len(); i++ {
		f := sc.Field(i)
		if !f.Normalized() {
			continue
		}
		col := t.Column(i)
		for row := 0; row < col.Len(); row++ {
			v, ok := col.String(row)
			if !ok {
				continue
			}
			if r := normalize.Check(v); r.Changed {
				issues = append(issues, Issue{
					Kind: NormalizationDrift, Field: f.Name, Row: row,
					Original: v, Canonical: r.Canonical,
				})
			}
		}
	}
	return issues
}

// Table runs all three checks against the registry and returns the combined
// issue list: shape first, then per registry field (declaration order) the
// domain violations and drift findings in row order.
func Table(t *table.Table, registry schema.Schema) []Issue {
	issues := Shape(t.Schema(), registry)

	domain := Domain(t)
	drift := Drift(t)

	for i := 0; i < registry.Len(); i++ {
		name := registry.Field(i).Name
		for _, iss := range domain {
			if iss.Field == name {
				issues = append(issues, iss)
			}
		}
		for _, iss := range drift {
			if iss.Field == name {
				issues = append(issues, iss)
			}
		}
	}
	return issues
}

// Repairable reports whether every issue in the list is auto-repairable.
// Only drift is; shape, cast, and domain problems need upstream correction.
func Repairable(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Kind != NormalizationDrift {
			return false
		}
	}
	return true
}
