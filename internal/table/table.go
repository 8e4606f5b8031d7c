// Package table holds the in-memory typed table that conforms (or is being
// checked for conformance) to a schema registry.
//
// Storage is columnar: one typed column per declared field, in declaration
// order, with a validity mask for null markers. The contract callers rely on
// is per-row typed access plus bulk per-column transforms; the column layout
// itself is an implementation detail.
//
// Tables are never repaired in place. Repair flows clone the table, rewrite
// cells on the clone, and persist the clone wholesale.
package table

import (
	"fmt"
	"time"

	"marketcal/internal/schema"
)

// Column is one typed column of a Table. Exactly one of the value slices is
// populated, chosen by the field type; valid marks non-null cells.
type Column struct {
	field schema.Field
	strs  []string
	times []time.Time
	valid []bool
}

// Field returns the registry field this column stores.
func (c *Column) Field() schema.Field { return c.field }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.valid) }

// String returns the string value at row and whether it is non-null. It must
// only be called on Text or Categorical columns.
func (c *Column) String(row int) (string, bool) {
	if !c.valid[row] {
		return "", false
	}
	return c.strs[row], true
}

// Time returns the date value at row and whether it is non-null. It must
// only be called on Date columns.
func (c *Column) Time(row int) (time.Time, bool) {
	if !c.valid[row] {
		return time.Time{}, false
	}
	return c.times[row], true
}

// SetString overwrites the string cell at row with a non-null value.
func (c *Column) SetString(row int, v string) {
	c.strs[row] = v
	c.valid[row] = true
}

// AppendString appends a non-null string cell.
func (c *Column) AppendString(v string) {
	c.strs = append(c.strs, v)
	c.valid = append(c.valid, true)
}

// AppendTime appends a non-null date cell.
func (c *Column) AppendTime(v time.Time) {
	c.times = append(c.times, v)
	c.valid = append(c.valid, true)
}

// AppendNull appends a null marker of the column's type.
func (c *Column) AppendNull() {
	switch c.field.Type {
	case schema.Date:
		c.times = append(c.times, time.Time{})
	default:
		c.strs = append(c.strs, "")
	}
	c.valid = append(c.valid, false)
}

func (c *Column) clone() *Column {
	cp := &Column{field: c.field}
	cp.strs = append([]string(nil), c.strs...)
	cp.times = append([]time.Time(nil), c.times...)
	cp.valid = append([]bool(nil), c.valid...)
	return cp
}

// Table is an ordered set of rows stored column-wise against a Schema.
type Table struct {
	sc   schema.Schema
	cols []*Column
}

// New returns an empty table conforming to sc, columns in declared order.
func New(sc schema.Schema) *Table {
	cols := make([]*Column, sc.Len())
	for i := range cols {
		cols[i] = &Column{field: sc.Field(i)}
	}
	return &Table{sc: sc, cols: cols}
}

// Schema returns the registry the table conforms to.
func (t *Table) Schema() schema.Schema { return t.sc }

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// Column returns the column at declaration position i.
func (t *Table) Column(i int) *Column { return t.cols[i] }

// ColumnByName returns the named column, or nil if the registry does not
// declare it.
func (t *Table) ColumnByName(name string) *Column {
	_, i, ok := t.sc.Lookup(name)
	if !ok {
		return nil
	}
	return t.cols[i]
}

// Clone returns a deep copy sharing nothing with t.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.clone()
	}
	return &Table{sc: t.sc, cols: cols}
}

// Concat returns a new table holding head's rows followed by tail's rows.
// Both inputs are left untouched. The tables must conform to equal schemas.
func Concat(head, tail *Table) (*Table, error) {
	if !head.Schema().Equal(tail.Schema()) {
		return nil, fmt.Errorf("table: concat schema mismatch: %s vs %s", head.Schema(), tail.Schema())
	}
	out := head.Clone()
	for i, c := range out.cols {
		tc := tail.cols[i]
		c.strs = append(c.strs, tc.strs...)
		c.times = append(c.times, tc.times...)
		c.valid = append(c.valid, tc.valid...)
	}
	return out, nil
}

// Sessions decodes a market-schema table into typed Session records. It
// returns an error if the table does not conform to the market registry.
func Sessions(t *Table) ([]schema.Session, error) {
	if !t.Schema().Equal(schema.Market()) {
		return nil, fmt.Errorf("table: not a market-schema table: %s", t.Schema())
	}
	var (
		date     = t.ColumnByName(schema.FieldDate)
		desc     = t.ColumnByName(schema.FieldDescription)
		session  = t.ColumnByName(schema.FieldSessionType)
		circular = t.ColumnByName(schema.FieldCircularDate)
	)
	out := make([]schema.Session, t.Len())
	for row := range out {
		s := &out[row]
		s.Date, s.HasDate = date.Time(row)
		s.Description, _ = desc.String(row)
		s.SessionType, _ = session.String(row)
		s.CircularDate, s.HasCircularDate = circular.Time(row)
	}
	return out, nil
}
