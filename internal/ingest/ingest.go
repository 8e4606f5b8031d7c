package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"marketcal/internal/normalize"
	"marketcal/internal/schema"
	"marketcal/internal/table"
	"marketcal/internal/validate"
)

// SchemaRejectedError is returned when input cannot become canonical under
// the registry. It carries every issue found, not just the first; the input
// must be fixed upstream.
type SchemaRejectedError struct {
	Issues []validate.Issue
}

func (e *SchemaRejectedError) Error() string {
	if len(e.Issues) == 1 {
		return "schema rejected: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, iss := range e.Issues {
		parts[i] = iss.String()
	}
	return fmt.Sprintf("schema rejected (%d issues): %s", len(e.Issues), strings.Join(parts, "; "))
}

// Ingest converts a raw input table into a canonical typed table under the
// registry, or rejects it.
//
// Stages, in order:
//
//  1. Shape gate. The input field set must equal the registry's exactly; a
//     misshapen table is rejected before any value is touched.
//  2. Normalization. Designated string fields are rewritten to canonical
//     form unconditionally; the output contains only canonical data.
//  3. Domain gate. After normalization, every categorical value must belong
//     to its closed domain; all offenders are aggregated into one rejection.
//  4. Cast. Dates parse with the field layout; an empty cell becomes a null
//     marker, a non-empty unparseable cell is a hard rejection.
//
// The output column order is the registry's declared order regardless of the
// input column order.
func Ingest(raw *RawTable, registry schema.Schema) (*table.Table, error) {
	if issues := shapeIssues(raw, registry); len(issues) > 0 {
		return nil, &SchemaRejectedError{Issues: issues}
	}

	out := table.New(registry)
	var issues []validate.Issue

	for i := 0; i < registry.Len(); i++ {
		f := registry.Field(i)
		values, _ := raw.Column(f.Name)
		col := out.Column(i)

		switch f.Type {
		case schema.Text, schema.Categorical:
			for row, v := range values {
				canon := normalize.Canonical(v)
				if f.Type == schema.Categorical && !f.InDomain(canon) {
					issues = append(issues, validate.Issue{
						Kind: validate.DomainViolation, Field: f.Name, Row: row, Original: canon,
					})
				}
				col.AppendString(canon)
			}

		case schema.Date:
			layout := f.Layout
			if layout == "" {
				layout = schema.ISOLayout
			}
			for row, v := range values {
				v = strings.TrimSpace(v)
				if v == "" {
					col.AppendNull()
					continue
				}
				d, err := time.Parse(layout, v)
				if err != nil {
					issues = append(issues, validate.Issue{
						Kind: validate.CastFailure, Field: f.Name, Row: row,
						Original: v, Detail: fmt.Sprintf("not a %s date", layout),
					})
					col.AppendNull()
					continue
				}
				col.AppendTime(d)
			}
		}
	}

	if len(issues) > 0 {
		return nil, &SchemaRejectedError{Issues: issues}
	}
	return out, nil
}

// shapeIssues compares the raw header against the registry field set in both
// directions. Duplicated input columns are reported as such.
func shapeIssues(raw *RawTable, registry schema.Schema) []validate.Issue {
	var issues []validate.Issue

	seen := make(map[string]int, len(raw.Header))
	var dups []string
	for _, h := range raw.Header {
		seen[h]++
		if seen[h] == 2 {
			dups = append(dups, h)
		}
	}

	for _, name := range registry.Names() {
		if seen[name] == 0 {
			issues = append(issues, validate.Issue{
				Kind: validate.ShapeMismatch, Field: name, Row: -1, Detail: "missing",
			})
		}
	}
	var extra []string
	for name := range seen {
		if _, _, ok := registry.Lookup(name); !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		issues = append(issues, validate.Issue{
			Kind: validate.ShapeMismatch, Field: name, Row: -1, Detail: "unexpected",
		})
	}
	sort.Strings(dups)
	for _, name := range dups {
		issues = append(issues, validate.Issue{
			Kind: validate.ShapeMismatch, Field: name, Row: -1, Detail: "duplicate",
		})
	}
	return issues
}
