package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// WriteCSV writes t as comma-delimited CSV with a header row. Null cells
// are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	record := make([]string, len(t.cols))
	for _, r := range t.rows {
		for j, c := range r {
			record[j] = c.Value
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a CSV with a header row. Empty fields read as null and every
// column is tagged with source.
func ReadCSV(r io.Reader, source Provenance) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	t := New()
	for _, h := range header {
		if t.Has(h) {
			return nil, fmt.Errorf("read CSV header: duplicate column %q", h)
		}
		t.AddColumn(Column{Name: h, Source: source})
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", line, err)
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("read CSV row %d: %d fields, header has %d", line, len(rec), len(header))
		}
		row := make([]Cell, len(header))
		for j, v := range rec {
			if v != "" {
				row[j] = Str(v)
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}
