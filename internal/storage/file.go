package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// WriteFileAtomic writes path through a temp file in the same directory and
// renames it into place, so readers never see a half-written file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	committed = true
	return nil
}

// ReadCSVFile reads a CSV table from path, tagging its columns with source.
func ReadCSVFile(path string, source table.Provenance) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.NotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := table.ReadCSV(bufio.NewReader(f), source)
	if err != nil {
		return nil, &types.MalformedInputError{Source: path, Reason: err.Error(), Err: err}
	}
	return t, nil
}

// --- CSV table sink ---

// CSVSink writes each table as a CSV file at its name.
type CSVSink struct {
	logger *slog.Logger
}

// NewCSVSink creates a CSV table sink.
func NewCSVSink(logger *slog.Logger) *CSVSink {
	return &CSVSink{logger: logger.With("component", "csv_sink")}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) WriteTable(_ context.Context, name string, t *table.Table) error {
	path := withExt(name, ".csv")
	if err := WriteFileAtomic(path, func(w io.Writer) error { return table.WriteCSV(w, t) }); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Info("CSV written", "path", path, "rows", t.Len(), "columns", t.Width())
	return nil
}

func (s *CSVSink) Close() error { return nil }

// --- JSON table sink ---

// JSONSink writes each table as a JSON array of objects, one per row, with
// keys in column order and null cells as null.
type JSONSink struct {
	logger *slog.Logger
}

// NewJSONSink creates a JSON table sink.
func NewJSONSink(logger *slog.Logger) *JSONSink {
	return &JSONSink{logger: logger.With("component", "json_sink")}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) WriteTable(_ context.Context, name string, t *table.Table) error {
	path := withExt(name, ".json")
	names := t.Names()
	rows := make([]json.RawMessage, t.Len())
	for i := range rows {
		cells := make([]table.Cell, len(names))
		for j, n := range names {
			cells[j] = t.Get(i, n)
		}
		row, err := rowJSON(names, cells)
		if err != nil {
			return &types.StorageError{Backend: s.Name(), Err: err}
		}
		rows[i] = row
	}

	err := WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Info("JSON written", "path", path, "rows", t.Len())
	return nil
}

func (s *JSONSink) Close() error { return nil }

// rowJSON encodes one row as an object with keys in column order.
func rowJSON(names []string, cells []table.Cell) (json.RawMessage, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, n := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		if !cells[i].Valid {
			b.WriteString("null")
			continue
		}
		v, err := json.Marshal(cells[i].Value)
		if err != nil {
			return nil, err
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func withExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// --- JSON array writer ---

// JSONArrayWriter streams raw JSON documents into a file as one array.
// Nothing is visible at the final path until Close succeeds.
type JSONArrayWriter struct {
	path  string
	tmp   *os.File
	w     *bufio.Writer
	mu    sync.Mutex
	count int
}

// NewJSONArrayWriter starts a JSON array at path.
func NewJSONArrayWriter(path string) (*JSONArrayWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString("["); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return &JSONArrayWriter{path: path, tmp: tmp, w: w}, nil
}

// Write appends one document. A nil document is written as null.
func (a *JSONArrayWriter) Write(doc json.RawMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf bytes.Buffer
	if doc == nil {
		buf.WriteString("null")
	} else if err := json.Indent(&buf, doc, "    ", "    "); err != nil {
		return fmt.Errorf("element %d: %w", a.count, err)
	}

	sep := "\n    "
	if a.count > 0 {
		sep = ",\n    "
	}
	if _, err := a.w.WriteString(sep); err != nil {
		return err
	}
	if _, err := a.w.Write(buf.Bytes()); err != nil {
		return err
	}
	a.count++
	return nil
}

// Count returns the number of documents written so far.
func (a *JSONArrayWriter) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Close terminates the array and moves the file into place.
func (a *JSONArrayWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tail := "]\n"
	if a.count > 0 {
		tail = "\n]\n"
	}
	if _, err := a.w.WriteString(tail); err != nil {
		a.abort()
		return err
	}
	if err := a.w.Flush(); err != nil {
		a.abort()
		return fmt.Errorf("flush %s: %w", a.path, err)
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return fmt.Errorf("close %s: %w", a.path, err)
	}
	if err := os.Rename(a.tmp.Name(), a.path); err != nil {
		os.Remove(a.tmp.Name())
		return fmt.Errorf("rename %s: %w", a.path, err)
	}
	return nil
}

// Abort discards everything written.
func (a *JSONArrayWriter) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abort()
}

func (a *JSONArrayWriter) abort() {
	a.tmp.Close()
	os.Remove(a.tmp.Name())
}

// --- JSONL item storage ---

// JSONLStorage writes items as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(_ context.Context, items []*types.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := s.enc.Encode(item.Document()); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "items", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
