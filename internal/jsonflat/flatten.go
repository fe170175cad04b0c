package jsonflat

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// DefaultSep joins nested keys.
const DefaultSep = "."

// Record is one flattened row: dotted keys in document order with their raw
// leaf values. Arrays are leaves.
type Record struct {
	Keys   []string
	Values map[string]gjson.Result
}

func newRecord() *Record {
	return &Record{Values: make(map[string]gjson.Result)}
}

// Get returns the raw value for a dotted key.
func (r *Record) Get(key string) (gjson.Result, bool) {
	v, ok := r.Values[key]
	return v, ok
}

func (r *Record) set(key string, v gjson.Result) {
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = v
}

// Without returns a copy of r lacking key.
func (r *Record) Without(key string) *Record {
	out := newRecord()
	for _, k := range r.Keys {
		if k != key {
			out.set(k, r.Values[k])
		}
	}
	return out
}

// Flatten walks obj recursively, joining nested object keys with sep.
// An empty nested object contributes no columns. A repeated key keeps its
// first position and its last value.
func Flatten(obj gjson.Result, sep string) *Record {
	rec := newRecord()
	flattenInto(rec, "", obj, sep)
	return rec
}

func flattenInto(rec *Record, prefix string, obj gjson.Result, sep string) {
	if !obj.IsObject() {
		return
	}
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.Str
		if prefix != "" {
			key = prefix + sep + key
		}
		if v.IsObject() {
			flattenInto(rec, key, v, sep)
		} else {
			rec.set(key, v)
		}
		return true
	})
}

// Normalize turns a document into records: one per element of a top-level
// array, or a single record for a top-level object. Array elements that are
// not objects are malformed; null elements are skipped.
func Normalize(doc gjson.Result, sep string) ([]*Record, error) {
	switch {
	case doc.IsObject():
		return []*Record{Flatten(doc, sep)}, nil
	case doc.IsArray():
		elems := doc.Array()
		out := make([]*Record, 0, len(elems))
		for i, el := range elems {
			if IsNull(el) {
				continue
			}
			if !el.IsObject() {
				return nil, &types.MalformedInputError{
					Reason: fmt.Sprintf("element %d is %s, want object", i, kind(el)),
				}
			}
			out = append(out, Flatten(el, sep))
		}
		return out, nil
	default:
		return nil, &types.MalformedInputError{
			Reason: fmt.Sprintf("top-level value is %s, want object or array", kind(doc)),
		}
	}
}

// LoadTable reads a JSON file and normalizes it into a table tagged with source.
func LoadTable(path string, source table.Provenance) (*table.Table, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := Normalize(doc, DefaultSep)
	if err != nil {
		if me, ok := err.(*types.MalformedInputError); ok {
			me.Source = path
		}
		return nil, err
	}
	return ToTable(recs, source), nil
}

// ToTable converts records to a table over the union of their keys.
func ToTable(recs []*Record, source table.Provenance) *table.Table {
	return AppendRecords(table.New(), recs, source)
}

// AppendRecords appends records to t, growing its columns as needed.
func AppendRecords(t *table.Table, recs []*Record, source table.Provenance) *table.Table {
	for _, r := range recs {
		cells := make([]table.Cell, len(r.Keys))
		for i, k := range r.Keys {
			cells[i] = Cell(r.Values[k])
		}
		t.AppendRecord(r.Keys, cells, source)
	}
	return t
}

// Cell renders a raw JSON value as a table cell. Scalars keep their literal
// text; arrays and objects become compact JSON.
func Cell(v gjson.Result) table.Cell {
	if IsNull(v) {
		return table.Null
	}
	switch v.Type {
	case gjson.String:
		return table.Str(v.Str)
	case gjson.JSON:
		return table.Str(string(pretty.Ugly([]byte(v.Raw))))
	default:
		return table.Str(v.Raw)
	}
}

// String returns the cell text of v, or nil when v is absent or null.
func String(v gjson.Result) *string {
	c := Cell(v)
	if !c.Valid {
		return nil
	}
	s := c.Value
	return &s
}

func kind(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return "null"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	default:
		if v.IsArray() {
			return "array"
		}
		return "object"
	}
}
