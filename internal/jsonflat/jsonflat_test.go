package jsonflat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

func mustDecode(t *testing.T, s string) gjson.Result {
	t.Helper()
	v, err := Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestDecodeKeepsKeyOrderAndNumberText(t *testing.T) {
	doc := mustDecode(t, `{"z": 1, "a": {"y": 2.50, "b": [1, 2]}, "m": null}`)
	rec := Flatten(doc, DefaultSep)
	assert.Equal(t, []string{"z", "a.y", "a.b", "m"}, rec.Keys)

	var cells []string
	for _, k := range rec.Keys {
		cells = append(cells, Cell(rec.Values[k]).String())
	}
	assert.Equal(t, []string{"1", "2.50", "[1,2]", ""}, cells)
	assert.False(t, Cell(rec.Values["m"]).Valid)

	v, ok := rec.Get("a.y")
	require.True(t, ok)
	assert.Equal(t, "2.50", v.Raw)
}

func TestFlattenRepeatedKey(t *testing.T) {
	rec := Flatten(mustDecode(t, `{"a": 1, "b": 2, "a": 3}`), DefaultSep)
	assert.Equal(t, []string{"a", "b"}, rec.Keys)
	assert.Equal(t, "3", rec.Values["a"].Raw)
}

func TestCell(t *testing.T) {
	tests := []struct {
		doc  string
		want table.Cell
	}{
		{`"Blink"`, table.Str("Blink")},
		{`"caf\u00e9"`, table.Str("café")},
		{`12.0`, table.Str("12.0")},
		{`true`, table.Str("true")},
		{`null`, table.Null},
		{`{"b": 1,  "a": [ "x" ]}`, table.Str(`{"b":1,"a":["x"]}`)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cell(mustDecode(t, tt.doc)), tt.doc)
	}
	assert.Equal(t, table.Null, Cell(gjson.Result{}))
}

func TestDecodeErrors(t *testing.T) {
	for _, in := range []string{``, `{"a": `, `{} {}`, `[1,]`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, types.ErrNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"id": 1,`), 0o644))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, types.ErrMalformedInput)
	assert.ErrorContains(t, err, "bad.json")
}

func TestFlatten(t *testing.T) {
	obj := mustDecode(t, `{"id": 5, "spell": {"key": {"href": "h"}, "name": "Blink"}, "media": {}, "ranks": [{"rank": 1}]}`)
	rec := Flatten(obj, DefaultSep)

	assert.Equal(t, []string{"id", "spell.key.href", "spell.name", "ranks"}, rec.Keys)
	v, ok := rec.Get("spell.key.href")
	assert.True(t, ok)
	assert.Equal(t, "h", v.String())

	assert.Equal(t, []string{"spell.key.href", "spell.name", "ranks"}, rec.Without("id").Keys)
	assert.Equal(t, []string{"id", "spell_key_href", "spell_name", "ranks"}, Flatten(obj, "_").Keys)
}

func TestNormalize(t *testing.T) {
	recs, err := Normalize(mustDecode(t, `[{"id": 1}, null, {"id": 2, "name": "x"}]`), DefaultSep)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"id", "name"}, recs[1].Keys)

	recs, err = Normalize(mustDecode(t, `{"id": 1}`), DefaultSep)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = Normalize(mustDecode(t, `[{"id": 1}, 7]`), DefaultSep)
	assert.ErrorIs(t, err, types.ErrMalformedInput)
	assert.ErrorContains(t, err, "element 1 is number")

	_, err = Normalize(mustDecode(t, `"text"`), DefaultSep)
	assert.ErrorIs(t, err, types.ErrMalformedInput)
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spells.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
	  {"id": 100, "name": "Blink", "media": {"id": 7}},
	  null,
	  {"id": 200, "tags": ["a", "b"], "passive": false}
	]`), 0o644))

	tb, err := LoadTable(path, table.Spell)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "media.id", "tags", "passive"}, tb.Names())
	assert.Equal(t, 2, tb.Len())
	assert.Equal(t, table.Str(`["a","b"]`), tb.Get(1, "tags"))
	assert.Equal(t, table.Str("false"), tb.Get(1, "passive"))
	assert.Equal(t, table.Null, tb.Get(1, "name"))

	col, _ := tb.Column("media.id")
	assert.Equal(t, table.Spell, col.Source)

	require.NoError(t, os.WriteFile(path, []byte(`[1, 2]`), 0o644))
	_, err = LoadTable(path, table.Spell)
	var me *types.MalformedInputError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, path, me.Source)
}

func TestLookup(t *testing.T) {
	doc := mustDecode(t, `{"spell": {"id": 9, "name": null}, "ranks": [1, 2], "n": "x", "a.b": {"c": "dotted"}}`)

	v, ok := Lookup(doc, "spell", "id")
	assert.True(t, ok)
	assert.Equal(t, int64(9), v.Int())

	require.NotNil(t, LookupString(doc, "a.b", "c"))
	assert.Equal(t, "dotted", *LookupString(doc, "a.b", "c"))
	_, ok = Lookup(doc, "ranks", "0")
	assert.False(t, ok, "arrays are not indexed by key")

	_, ok = Lookup(doc, "spell", "name")
	assert.False(t, ok, "null reads as absent")
	_, ok = Lookup(doc, "n", "deeper")
	assert.False(t, ok)
	_, ok = Lookup(gjson.Result{}, "x")
	assert.False(t, ok)

	require.NotNil(t, LookupString(doc, "spell", "id"))
	assert.Equal(t, "9", *LookupString(doc, "spell", "id"))
	assert.Nil(t, LookupString(doc, "missing"))

	assert.Len(t, List(doc, "ranks"), 2)
	assert.Nil(t, List(doc, "n"))
}
