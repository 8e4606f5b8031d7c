// Package store persists canonical tables as Arrow IPC (Feather) files and
// owns the only write path to them: an atomic, lock-retrying whole-file
// replace.
//
// All Arrow-specific dependencies live here so the rest of the module works
// against internal/table and never sees the wire format.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/ipc"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"marketcal/internal/schema"
	"marketcal/internal/table"
)

// Field-level metadata keys carrying the registry semantics that Arrow's
// physical types alone cannot express.
const (
	typeMetaKey   = "marketcal:type"
	domainMetaKey = "marketcal:domain"
)

// arrowSchema maps a registry onto an Arrow schema. Dates become date32;
// text and categorical become utf8, with the semantic type (and for
// categoricals, the closed domain) recorded as field metadata.
func arrowSchema(sc schema.Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, sc.Len())
	for i, f := range sc.Fields() {
		var dt arrow.DataType
		switch f.Type {
		case schema.Date:
			dt = arrow.FixedWidthTypes.Date32
		case schema.Text, schema.Categorical:
			dt = arrow.BinaryTypes.String
		default:
			return nil, fmt.Errorf("store: field %q has unknown type %q", f.Name, f.Type)
		}
		keys := []string{typeMetaKey}
		vals := []string{string(f.Type)}
		if f.Type == schema.Categorical {
			dom, err := json.Marshal(f.Domain)
			if err != nil {
				return nil, fmt.Errorf("store: encode domain of %q: %w", f.Name, err)
			}
			keys = append(keys, domainMetaKey)
			vals = append(vals, string(dom))
		}
		fields[i] = arrow.Field{
			Name:     f.Name,
			Type:     dt,
			Nullable: true,
			Metadata: arrow.NewMetadata(keys, vals),
		}
	}
	return arrow.NewSchema(fields, nil), nil
}

// registrySchema reconstructs the registry a stored file declares. Files
// written by other tools carry no marketcal metadata; their semantic types
// are inferred from the physical types instead.
func registrySchema(as *arrow.Schema) (schema.Schema, error) {
	fields := make([]schema.Field, 0, len(as.Fields()))
	for _, af := range as.Fields() {
		f := schema.Field{Name: af.Name}

		if i := af.Metadata.FindKey(typeMetaKey); i >= 0 {
			f.Type = schema.Type(af.Metadata.Values()[i])
		} else {
			switch af.Type.ID() {
			case arrow.DATE32, arrow.DATE64, arrow.TIMESTAMP:
				f.Type = schema.Date
			default:
				f.Type = schema.Text
			}
		}
		if i := af.Metadata.FindKey(domainMetaKey); i >= 0 {
			if err := json.Unmarshal([]byte(af.Metadata.Values()[i]), &f.Domain); err != nil {
				return schema.Schema{}, fmt.Errorf("store: decode domain of %q: %w", af.Name, err)
			}
		}

		// Physical/semantic agreement: a date field stored as strings (or the
		// reverse) cannot be decoded into the typed table.
		switch f.Type {
		case schema.Date:
			if af.Type.ID() != arrow.DATE32 {
				return schema.Schema{}, fmt.Errorf("store: column %q declared %s but stored as %s", af.Name, f.Type, af.Type)
			}
		case schema.Text, schema.Categorical:
			if af.Type.ID() != arrow.STRING {
				return schema.Schema{}, fmt.Errorf("store: column %q declared %s but stored as %s", af.Name, f.Type, af.Type)
			}
		default:
			return schema.Schema{}, fmt.Errorf("store: column %q has unknown declared type %q", af.Name, f.Type)
		}
		fields = append(fields, f)
	}
	return schema.New(fields)
}

// Encode serializes t to the Arrow IPC file format. The IPC footer is
// written with seeks, so the sink must be seekable.
func Encode(w io.WriteSeeker, t *table.Table) error {
	as, err := arrowSchema(t.Schema())
	if err != nil {
		return err
	}
	mem := memory.NewGoAllocator()

	cols := make([]arrow.Array, t.Schema().Len())
	for i := range cols {
		col := t.Column(i)
		switch col.Field().Type {
		case schema.Date:
			b := array.NewDate32Builder(mem)
			for row := 0; row < col.Len(); row++ {
				if v, ok := col.Time(row); ok {
					b.Append(arrow.Date32FromTime(v))
				} else {
					b.AppendNull()
				}
			}
			cols[i] = b.NewArray()
			b.Release()
		default:
			b := array.NewStringBuilder(mem)
			for row := 0; row < col.Len(); row++ {
				if v, ok := col.String(row); ok {
					b.Append(v)
				} else {
					b.AppendNull()
				}
			}
			cols[i] = b.NewArray()
			b.Release()
		}
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	rec := array.NewRecord(as, cols, int64(t.Len()))
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(as), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("store: open ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("store: write record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("store: close ipc writer: %w", err)
	}
	return nil
}

// Decode reads an Arrow IPC file into a typed table under the schema the
// file itself declares. Conformance to the deployment registry is the
// caller's check, not Decode's.
func Decode(r io.ReaderAt, size int64) (*table.Table, error) {
	fr, err := ipc.NewFileReader(io.NewSectionReader(r, 0, size), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("store: open ipc reader: %w", err)
	}
	defer fr.Close()

	sc, err := registrySchema(fr.Schema())
	if err != nil {
		return nil, err
	}
	out := table.New(sc)

	for {
		rec, err := fr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: read record: %w", err)
		}
		for i := 0; i < sc.Len(); i++ {
			col := out.Column(i)
			arr := rec.Column(i)
			switch sc.Field(i).Type {
			case schema.Date:
				dates, ok := arr.(*array.Date32)
				if !ok {
					return nil, fmt.Errorf("store: column %q: unexpected array type %T", sc.Field(i).Name, arr)
				}
				for row := 0; row < dates.Len(); row++ {
					if dates.IsNull(row) {
						col.AppendNull()
					} else {
						col.AppendTime(dates.Value(row).ToTime())
					}
				}
			default:
				strs, ok := arr.(*array.String)
				if !ok {
					return nil, fmt.Errorf("store: column %q: unexpected array type %T", sc.Field(i).Name, arr)
				}
				for row := 0; row < strs.Len(); row++ {
					if strs.IsNull(row) {
						col.AppendNull()
					} else {
						col.AppendString(strs.Value(row))
					}
				}
			}
		}
	}
	return out, nil
}

// ReadFile loads a stored table from path.
func ReadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Decode(f, st.Size())
}

// EncodeBytes serializes t into memory. Tables are bounded, so buffering the
// whole file is acceptable and gives the writer one buffer to both persist
// and fingerprint.
func EncodeBytes(t *table.Table) ([]byte, error) {
	var buf seekBuffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// seekBuffer is an in-memory io.WriteSeeker backing EncodeBytes; bytes.Buffer
// cannot serve the IPC writer because it has no Seek.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + int64(len(p)); end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += int64(len(p))
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, fmt.Errorf("store: bad seek whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("store: seek before start of buffer")
	}
	b.pos = pos
	return pos, nil
}
