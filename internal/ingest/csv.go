// Package ingest turns untrusted CSV input into a canonical typed table, or
// rejects it with the complete list of problems.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// RawTable is a parsed but untyped input table: a header row plus string
// cells, exactly as the source provided them.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// ReadCSV parses r into a RawTable. The first record is the header; every
// data row must have the same width as the header. Cell values keep their
// whitespace; normalization is the pipeline's job, not the parser's.
func ReadCSV(r io.Reader) (*RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // enforce header width on every row

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		row := make([]string, len(rec))
		copy(row, rec)
		rows = append(rows, row)
	}
	return &RawTable{Header: header, Rows: rows}, nil
}

// Column returns the values of the named input column, or false if the
// header does not carry it.
func (rt *RawTable) Column(name string) ([]string, bool) {
	for i, h := range rt.Header {
		if h == name {
			out := make([]string, len(rt.Rows))
			for j, row := range rt.Rows {
				out[j] = row[i]
			}
			return out, true
		}
	}
	return nil, false
}
