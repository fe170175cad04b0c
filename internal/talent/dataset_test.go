package talent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/table"
)

func defaultClean() CleanOptions {
	return CleanOptions{
		FillValue:  "N/A",
		MissingPvP: "N/A",
		DropColumns: []string{
			"media.key.href", "media.id", "spell_tooltip.range",
			"tooltip_range", "default_points", "_links_self_href",
			"spell_key_href", "playable_class_key_href",
			"playable_specialization_key_href",
		},
	}
}

func cleanInput(t *testing.T) *table.Table {
	t.Helper()
	tb := table.New(
		table.Column{Name: "spell_id", Source: table.Tree},
		table.Column{Name: "id", Source: table.Spell},
		table.Column{Name: "pvp_notes", Source: table.Tree},
		table.Column{Name: "id_pvp", Source: table.PvP},
		table.Column{Name: "unlock_player_level", Source: table.PvP},
		table.Column{Name: "playable_specialization_key_href_pvp", Source: table.PvP},
	)
	rows := [][]table.Cell{
		{table.Str("100"), table.Str("100"), table.Str("note"), table.Null, table.Null, table.Null},
		{table.Str("200"), table.Null, table.Null, table.Str("9"), table.Str("40"), table.Str("https://api/spec/64")},
		{table.Str("100"), table.Str("100"), table.Str("note"), table.Null, table.Null, table.Null},
	}
	for _, r := range rows {
		require.NoError(t, tb.AppendRow(r...))
	}
	return tb
}

func TestCleanDataset(t *testing.T) {
	out := CleanDataset(cleanInput(t), defaultClean())

	require.Equal(t, 2, out.Len(), "exact duplicates are dropped")
	assert.Equal(t, []string{"spell_id", "id", "pvp_notes", "unlock_player_level", FromPvPSetColumn}, out.Names())

	// id falls back to id_pvp when it holds the fill value.
	assert.Equal(t, []string{"100", "9"}, column(out, "id"))
	assert.Equal(t, []string{"N/A", "40"}, column(out, "unlock_player_level"))

	// A tree column that merely mentions pvp in its name does not count.
	assert.Equal(t, []string{"false", "true"}, column(out, FromPvPSetColumn))

	col, ok := out.Column(FromPvPSetColumn)
	require.True(t, ok)
	assert.Equal(t, table.Shared, col.Source)
}

func TestCleanDatasetPvPFlag(t *testing.T) {
	tb := table.New(
		table.Column{Name: "spell_id", Source: table.Tree},
		table.Column{Name: "description", Source: table.PvP},
		table.Column{Name: "slot_1", Source: table.PvP},
	)
	require.NoError(t, tb.AppendRow(table.Str("1"), table.Null, table.Null))
	require.NoError(t, tb.AppendRow(table.Str("2"), table.Str("N/A"), table.Str("N/A")))
	require.NoError(t, tb.AppendRow(table.Str("3"), table.Null, table.Str("13")))

	out := CleanDataset(tb, defaultClean())
	assert.Equal(t, []string{"false", "false", "true"}, column(out, FromPvPSetColumn))

	// With a missing marker that never occurs every row is flagged.
	opts := defaultClean()
	opts.MissingPvP = "Missing_PvP"
	out = CleanDataset(tb, opts)
	assert.Equal(t, []string{"true", "true", "true"}, column(out, FromPvPSetColumn))
}

func TestCleanDatasetWithoutPvPColumns(t *testing.T) {
	tb := table.NewTagged(table.Tree, "spell_id", "tooltip_range")
	require.NoError(t, tb.AppendRow(table.Str("1"), table.Str("40 yd")))

	out := CleanDataset(tb, defaultClean())
	assert.Equal(t, []string{"spell_id", FromPvPSetColumn}, out.Names())
	assert.Equal(t, "false", out.Get(0, FromPvPSetColumn).Value)
}

func TestMergeDatasets(t *testing.T) {
	tree := table.NewTagged(table.Tree, "spell_id", "talent_name")
	require.NoError(t, tree.AppendRow(table.Str("100"), table.Str("Blink")))
	require.NoError(t, tree.AppendRow(table.Str("200"), table.Str("Frostbolt")))

	spells := table.NewTagged(table.Spell, "id", "name")
	require.NoError(t, spells.AppendRow(table.Str("100"), table.Str("Blink")))
	require.NoError(t, spells.AppendRow(table.Str("300"), table.Str("Fireball")))

	pve := FlattenPvE([]gjson.Result{mustDecode(t, `{"id": 1, "spell": {"id": 200, "name": "Frostbolt"}}`)})
	pvp := FlattenPvP([]gjson.Result{mustDecode(t, `{
	  "id": 7,
	  "spell": {"id": 400, "name": "Gladiator"},
	  "playable_specialization": {"key": {"href": "https://api/spec/64"}},
	  "unlock_player_level": 20
	}`)})

	merged, err := MergeDatasets(tree, pve, pvp, spells)
	require.NoError(t, err)
	require.Equal(t, 4, merged.Len())

	assert.Equal(t, []string{"100", "200", "<null>", "400"}, column(merged, "spell_id"))
	assert.Equal(t, []string{"100", "<null>", "300", "<null>"}, column(merged, "id"))
	assert.Equal(t, []string{"<null>", "1", "<null>", "<null>"}, column(merged, "id_pve"))
	assert.Equal(t, []string{"<null>", "<null>", "<null>", "7"}, column(merged, "id_pvp"))
	assert.True(t, merged.Has("playable_specialization_key_href_pvp"))

	idPvP, _ := merged.Column("id_pvp")
	assert.Equal(t, table.PvP, idPvP.Source)
	level, _ := merged.Column("unlock_player_level")
	assert.Equal(t, table.PvP, level.Source)

	out := CleanDataset(merged, defaultClean())
	assert.False(t, out.Has("id_pvp"))
	assert.False(t, out.Has("playable_specialization_key_href_pvp"))
	assert.False(t, out.Has("playable_specialization_key_href"))
	assert.Equal(t, []string{"100", "N/A", "300", "7"}, column(out, "id"))
	assert.Equal(t, []string{"false", "false", "false", "true"}, column(out, FromPvPSetColumn))
}

func TestMergeDatasetsMissingKey(t *testing.T) {
	tree := table.NewTagged(table.Tree, "talent_name")
	spells := table.NewTagged(table.Spell, "id")
	_, err := MergeDatasets(tree, FlattenPvE(nil), FlattenPvP(nil), spells)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spell_id")
}
