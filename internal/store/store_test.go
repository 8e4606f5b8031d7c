package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketcal/internal/schema"
	"marketcal/internal/table"
)

// marketTable builds a canonical market table with the given
// (description, session_type, date) triples.
func marketTable(t *testing.T, rows [][3]string) *table.Table {
	t.Helper()
	tbl := table.New(schema.Market())
	for _, r := range rows {
		d, err := time.Parse(schema.ISOLayout, r[2])
		if err != nil {
			t.Fatalf("bad test date %q: %v", r[2], err)
		}
		tbl.ColumnByName(schema.FieldDate).AppendTime(d)
		tbl.ColumnByName(schema.FieldDescription).AppendString(r[0])
		tbl.ColumnByName(schema.FieldSessionType).AppendString(r[1])
		tbl.ColumnByName(schema.FieldCircularDate).AppendNull()
	}
	return tbl
}

/*
TestWriteRead round-trips a market table through the Feather codec on disk:
schema (including the categorical domain carried in field metadata), values,
and the null markers of the circular_date column all survive.
*/
func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.feather")

	tbl := marketTable(t, [][3]string{
		{"Diwali", "Trading Holiday", "2024-11-01"},
		{"Budget Day", "Special Session", "2024-02-01"},
	})

	if _, err := (Writer{}).Write(path, tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !got.Schema().Equal(schema.Market()) {
		t.Fatalf("decoded schema %s, want market registry", got.Schema())
	}
	if got.Len() != 2 {
		t.Fatalf("decoded %d rows, want 2", got.Len())
	}
	if v, ok := got.ColumnByName(schema.FieldSessionType).String(1); !ok || v != "Special Session" {
		t.Errorf("session_type row 1 = %q ok=%v", v, ok)
	}
	if d, ok := got.ColumnByName(schema.FieldDate).Time(0); !ok || d.Format(schema.ISOLayout) != "2024-11-01" {
		t.Errorf("date row 0 = %v ok=%v", d, ok)
	}
	if _, ok := got.ColumnByName(schema.FieldCircularDate).Time(0); ok {
		t.Error("circular_date null marker lost in round trip")
	}

	// No temp file may survive a successful write.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

/*
TestEncodeBytes round-trips a table entirely in memory: the IPC file format
needs a seekable sink for its footer, and the in-memory path must produce
the same decodable bytes the on-disk path persists.
*/
func TestEncodeBytes(t *testing.T) {
	tbl := marketTable(t, [][3]string{
		{"Diwali", "Trading Holiday", "2024-11-01"},
		{"Budget Day", "Special Session", "2024-02-01"},
	})

	data, err := EncodeBytes(tbl)
	if err != nil {
		t.Fatalf("EncodeBytes: %v", err)
	}
	got, err := Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Len() != 2 || !got.Schema().Equal(schema.Market()) {
		t.Fatalf("round trip lost rows or schema: rows=%d schema=%s", got.Len(), got.Schema())
	}
	if v, _ := got.ColumnByName(schema.FieldDescription).String(1); v != "Budget Day" {
		t.Errorf("description row 1 = %q", v)
	}

	path := filepath.Join(t.TempDir(), "s.feather")
	sum, err := (Writer{}).Write(path, tbl)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	onDisk, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if onDisk != sum {
		t.Errorf("on-disk fingerprint %016x, want %016x", onDisk, sum)
	}
}

/*
TestWrite_ReplacesWholesale: writing over an existing destination replaces
the content entirely, and the fingerprint tracks the content.
*/
func TestWrite_ReplacesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.feather")
	w := Writer{}

	first := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})
	sum1, err := w.Write(path, first)
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}

	second := marketTable(t, [][3]string{{"B", "Special Session", "2024-02-02"}})
	sum2, err := w.Write(path, second)
	if err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if sum1 == sum2 {
		t.Error("different content produced identical fingerprints")
	}

	onDisk, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if onDisk != sum2 {
		t.Errorf("on-disk fingerprint %016x, want %016x", onDisk, sum2)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if v, _ := got.ColumnByName(schema.FieldDescription).String(0); v != "B" || got.Len() != 1 {
		t.Errorf("destination not replaced wholesale: rows=%d first=%q", got.Len(), v)
	}
}

/*
TestOverwrite_SchemaGuard: overwriting a readable store of a different
schema is refused with the destination untouched; a missing destination is
written plainly.
*/
func TestOverwrite_SchemaGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.feather")
	w := Writer{}

	other := schema.MustNew([]schema.Field{
		{Name: "date", Type: schema.Date},
		{Name: "note", Type: schema.Text},
	})
	seed := table.New(other)
	seed.ColumnByName("date").AppendNull()
	seed.ColumnByName("note").AppendString("x")
	if _, err := w.Write(path, seed); err != nil {
		t.Fatalf("seed Write: %v", err)
	}
	before, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}

	tbl := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})
	_, err = w.Overwrite(path, tbl)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	after, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if before != after {
		t.Error("refused overwrite modified the destination")
	}

	fresh := filepath.Join(t.TempDir(), "fresh.feather")
	if _, err := w.Overwrite(fresh, tbl); err != nil {
		t.Fatalf("Overwrite to missing destination: %v", err)
	}
}

/*
TestAppend: appending N rows to a store of M keeps the original M rows first,
in order, and persists exactly M+N.
*/
func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.feather")
	w := Writer{}

	existing := marketTable(t, [][3]string{
		{"A", "Trading Holiday", "2024-01-01"},
		{"B", "Settlement Holiday", "2024-01-02"},
	})
	if _, err := w.Write(path, existing); err != nil {
		t.Fatalf("seed Write: %v", err)
	}

	fresh := marketTable(t, [][3]string{{"C", "Special Session", "2024-01-03"}})
	total, _, err := w.Append(path, fresh)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []string{"A", "B", "C"}
	for i, d := range want {
		if v, _ := got.ColumnByName(schema.FieldDescription).String(i); v != d {
			t.Errorf("row %d description = %q, want %q", i, v, d)
		}
	}
}

/*
TestAppend_MissingDestination degrades to a plain write.
*/
func TestAppend_MissingDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.feather")
	fresh := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})

	total, _, err := (Writer{}).Append(path, fresh)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
}

/*
TestAppend_SchemaMismatch: an existing destination with a different schema is
fatal; the destination stays untouched.
*/
func TestAppend_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.feather")
	w := Writer{}

	other := schema.MustNew([]schema.Field{
		{Name: "date", Type: schema.Date},
		{Name: "note", Type: schema.Text},
	})
	seed := table.New(other)
	seed.ColumnByName("date").AppendNull()
	seed.ColumnByName("note").AppendString("x")
	if _, err := w.Write(path, seed); err != nil {
		t.Fatalf("seed Write: %v", err)
	}
	before, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}

	fresh := marketTable(t, [][3]string{{"A", "Trading Holiday", "2024-01-01"}})
	_, _, err = w.Append(path, fresh)

	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if len(mismatch.Issues) == 0 {
		t.Error("mismatch error should carry the shape issues")
	}

	after, err := FingerprintFile(path)
	if err != nil {
		t.Fatalf("FingerprintFile: %v", err)
	}
	if before != after {
		t.Error("failed append modified the destination")
	}
}
