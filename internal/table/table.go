// Package table is a small column-ordered table of nullable string cells.
// Every column carries a provenance tag naming the source dataset it came
// from, so downstream steps can reason about origin without parsing names.
package table

import (
	"fmt"
	"strings"
)

// Provenance labels the dataset a column originates from.
type Provenance string

const (
	Shared Provenance = "shared"
	Tree   Provenance = "tree"
	Spell  Provenance = "spell"
	PvE    Provenance = "pve"
	PvP    Provenance = "pvp"
)

// Column is a named, provenance-tagged column.
type Column struct {
	Name   string
	Source Provenance
}

// Cell is a nullable string value.
type Cell struct {
	Value string
	Valid bool
}

// Null is the absent cell.
var Null = Cell{}

// Str returns a non-null cell.
func Str(s string) Cell { return Cell{Value: s, Valid: true} }

// Ptr returns a cell for an optional string.
func Ptr(s *string) Cell {
	if s == nil {
		return Null
	}
	return Str(*s)
}

// String returns the value, or "" for null.
func (c Cell) String() string { return c.Value }

// Table holds rows of cells in column order.
type Table struct {
	cols  []Column
	index map[string]int
	rows  [][]Cell
}

// New creates an empty table with the given columns. Duplicate names panic,
// since they indicate a programming error in a fixed schema.
func New(cols ...Column) *Table {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if _, dup := t.index[c.Name]; dup {
			panic(fmt.Sprintf("table: duplicate column %q", c.Name))
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t
}

// NewTagged creates an empty table whose columns all share one provenance.
func NewTagged(source Provenance, names ...string) *Table {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Source: source}
	}
	return New(cols...)
}

// Columns returns a copy of the column list.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []Cell {
	return append([]Cell(nil), t.rows[i]...)
}

// Get returns the cell at row i in the named column; absent columns read as null.
func (t *Table) Get(i int, name string) Cell {
	j, ok := t.index[name]
	if !ok {
		return Null
	}
	return t.rows[i][j]
}

// Set replaces the cell at row i in the named column.
func (t *Table) Set(i int, name string, c Cell) error {
	j, ok := t.index[name]
	if !ok {
		return fmt.Errorf("table: no column %q", name)
	}
	t.rows[i][j] = c
	return nil
}

// AddColumn appends a column, backfilling existing rows with null. Adding a
// column that already exists is a no-op.
func (t *Table) AddColumn(c Column) {
	if _, ok := t.index[c.Name]; ok {
		return
	}
	t.index[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], Null)
	}
}

// AppendRow appends a row whose cells follow column order.
func (t *Table) AppendRow(cells ...Cell) error {
	if len(cells) != len(t.cols) {
		return fmt.Errorf("table: row has %d cells, table has %d columns", len(cells), len(t.cols))
	}
	t.rows = append(t.rows, append([]Cell(nil), cells...))
	return nil
}

// AppendRecord appends a row given by column name. Unknown names become new
// columns tagged with source; columns missing from rec are null.
func (t *Table) AppendRecord(names []string, cells []Cell, source Provenance) {
	for _, n := range names {
		t.AddColumn(Column{Name: n, Source: source})
	}
	row := make([]Cell, len(t.cols))
	for k, n := range names {
		row[t.index[n]] = cells[k]
	}
	t.rows = append(t.rows, row)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := New(t.cols...)
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		out.rows[i] = append([]Cell(nil), r...)
	}
	return out
}

// Rename returns a copy with columns renamed by mapping (old -> new).
// Names absent from mapping are kept. Two columns landing on the same name
// is an error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := make([]Column, len(t.cols))
	seen := make(map[string]string, len(t.cols))
	for i, c := range t.cols {
		name := c.Name
		if to, ok := mapping[name]; ok {
			name = to
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("table: rename maps both %q and %q to %q", prev, c.Name, name)
		}
		seen[name] = c.Name
		cols[i] = Column{Name: name, Source: c.Source}
	}
	out := New(cols...)
	out.rows = t.Clone().rows
	return out, nil
}

// Drop returns a copy without the named columns. Absent names are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []string
	for _, c := range t.cols {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Select returns a copy holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	cols := make([]Column, len(names))
	for k, n := range names {
		j, ok := t.index[n]
		if !ok {
			return nil, fmt.Errorf("table: no column %q", n)
		}
		idx[k] = j
		cols[k] = t.cols[j]
	}
	out := New(cols...)
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		row := make([]Cell, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out, nil
}

// Filter returns a copy holding the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	out := New(t.cols...)
	for i, r := range t.rows {
		if keep(i) {
			out.rows = append(out.rows, append([]Cell(nil), r...))
		}
	}
	return out
}

// DropDuplicates returns a copy without exact duplicate rows, keeping the
// first occurrence. Null and empty string are different values.
func (t *Table) DropDuplicates() *Table {
	out := New(t.cols...)
	seen := make(map[string]struct{}, len(t.rows))
	for _, r := range t.rows {
		k := rowKey(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.rows = append(out.rows, append([]Cell(nil), r...))
	}
	return out
}

// FillNull returns a copy with every null cell replaced by value.
func (t *Table) FillNull(value string) *Table {
	out := t.Clone()
	for _, r := range out.rows {
		for j := range r {
			if !r[j].Valid {
				r[j] = Str(value)
			}
		}
	}
	return out
}

// Concat stacks tables vertically over the union of their columns.
// Column order follows first appearance; missing cells are null.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		for _, c := range t.cols {
			out.AddColumn(c)
		}
	}
	for _, t := range tables {
		for _, r := range t.rows {
			row := make([]Cell, len(out.cols))
			for j, c := range t.cols {
				row[out.index[c.Name]] = r[j]
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// rowKey encodes cells unambiguously: each cell is a validity byte plus a
// length-prefixed value.
func rowKey(cells []Cell) string {
	var b strings.Builder
	for _, c := range cells {
		if !c.Valid {
			b.WriteByte(0)
			continue
		}
		b.WriteByte(1)
		fmt.Fprintf(&b, "%d:", len(c.Value))
		b.WriteString(c.Value)
	}
	return b.String()
}
