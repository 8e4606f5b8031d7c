package ingest

import (
	"errors"
	"strings"
	"testing"

	"marketcal/internal/schema"
	"marketcal/internal/table"
	"marketcal/internal/validate"
)

const cleanCSV = `date,description,session_type,circular_date
2024-11-01,Diwali,Trading Holiday,2024-10-15
2024-12-25,Christmas,Settlement Holiday,2024-12-01
`

/*
TestReadCSV parses header and rows, strips a UTF-8 BOM from the first header
cell, and rejects ragged rows.
*/
func TestReadCSV(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader("\uFEFF" + cleanCSV))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got, want := strings.Join(raw.Header, ","), "date,description,session_type,circular_date"; got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
	if len(raw.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(raw.Rows))
	}

	if _, err := ReadCSV(strings.NewReader("a,b\n1\n")); err == nil {
		t.Error("expected error for ragged row")
	}
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

/*
TestIngest_RoundTrip: a freshly ingested table carries only canonical data,
so validating it immediately yields zero domain and zero drift issues, and
columns come out in registry order regardless of input order.
*/
func TestIngest_RoundTrip(t *testing.T) {
	// Shuffled column order, messy values that normalize into the domain.
	in := `session_type,circular_date,date,description
 trading   holiday ,2024-10-15,2024-11-01,  diwali   festival
SETTLEMENT HOLIDAY,,2024-12-25,christmas
`
	raw, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	tbl, err := Ingest(raw, schema.Market())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if issues := validate.Table(tbl, schema.Market()); len(issues) != 0 {
		t.Fatalf("fresh table should validate clean, got %v", issues)
	}

	sessions, err := table.Sessions(tbl)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if sessions[0].Description != "Diwali Festival" || sessions[0].SessionType != "Trading Holiday" {
		t.Errorf("row 0 not canonical: %+v", sessions[0])
	}
	if sessions[1].HasCircularDate {
		t.Errorf("row 1 empty circular_date should be null, got %+v", sessions[1])
	}
	if got := tbl.Schema().Names(); strings.Join(got, ",") != "date,description,session_type,circular_date" {
		t.Errorf("output column order = %v, want registry order", got)
	}
}

/*
TestIngest_ShapeStrict: a missing or extra column always rejects, before any
casts, with both directions reported.
*/
func TestIngest_ShapeStrict(t *testing.T) {
	in := `date,description,session_type,notes
not-even-a-date,x,garbage,y
`
	raw, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	_, err = Ingest(raw, schema.Market())

	var rej *SchemaRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected SchemaRejectedError, got %v", err)
	}
	var missing, unexpected bool
	for _, iss := range rej.Issues {
		if iss.Kind != validate.ShapeMismatch {
			t.Errorf("misshapen table must only report shape issues, got %+v", iss)
		}
		if iss.Field == schema.FieldCircularDate && iss.Detail == "missing" {
			missing = true
		}
		if iss.Field == "notes" && iss.Detail == "unexpected" {
			unexpected = true
		}
	}
	if !missing || !unexpected {
		t.Fatalf("want missing circular_date and unexpected notes, got %v", rej.Issues)
	}
}

/*
TestIngest_DomainAggregates: every out-of-domain categorical value appears in
the single rejection, not just the first.
*/
func TestIngest_DomainAggregates(t *testing.T) {
	in := `date,description,session_type,circular_date
2024-01-01,a,Bad One,2024-01-01
2024-01-02,b,Trading Holiday,2024-01-02
2024-01-03,c,Bad Two,2024-01-03
`
	raw, _ := ReadCSV(strings.NewReader(in))
	_, err := Ingest(raw, schema.Market())

	var rej *SchemaRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected SchemaRejectedError, got %v", err)
	}
	if len(rej.Issues) != 2 {
		t.Fatalf("expected both offenders aggregated, got %v", rej.Issues)
	}
	if rej.Issues[0].Original != "Bad One" || rej.Issues[0].Row != 0 {
		t.Errorf("issue 0 = %+v", rej.Issues[0])
	}
	if rej.Issues[1].Original != "Bad Two" || rej.Issues[1].Row != 2 {
		t.Errorf("issue 1 = %+v", rej.Issues[1])
	}
}

/*
TestIngest_DateCast: empty date cells become null markers; non-empty
unparseable dates are a hard rejection.
*/
func TestIngest_DateCast(t *testing.T) {
	ok := `date,description,session_type,circular_date
2024-01-01,a,Trading Holiday,
`
	raw, _ := ReadCSV(strings.NewReader(ok))
	tbl, err := Ingest(raw, schema.Market())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, valid := tbl.ColumnByName(schema.FieldCircularDate).Time(0); valid {
		t.Error("empty circular_date should be null")
	}

	bad := `date,description,session_type,circular_date
01/02/2024,a,Trading Holiday,2024-01-01
`
	raw, _ = ReadCSV(strings.NewReader(bad))
	_, err = Ingest(raw, schema.Market())
	var rej *SchemaRejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected SchemaRejectedError for unparseable date, got %v", err)
	}
	if rej.Issues[0].Kind != validate.CastFailure || rej.Issues[0].Field != schema.FieldDate {
		t.Fatalf("unexpected issues %v", rej.Issues)
	}
}
