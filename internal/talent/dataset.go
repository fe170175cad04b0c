package talent

import (
	"fmt"
	"strconv"

	"github.com/IshaanNene/WoWHarvest/internal/table"
)

// FromPvPSetColumn flags rows carrying PvP talent data.
const FromPvPSetColumn = "from_pvp_set"

// CleanOptions controls CleanDataset.
type CleanOptions struct {
	// FillValue replaces every null cell.
	FillValue string
	// MissingPvP is the value a PvP column holds when the row has no PvP data.
	MissingPvP string
	// DropColumns are removed after filling; absent names are ignored.
	DropColumns []string
}

// MergeDatasets joins the talent-tree table with the spell, PvE and PvP
// tables on spell id, in that order, all as full outer joins.
func MergeDatasets(tree, pve, pvp, spells *table.Table) (*table.Table, error) {
	merged, err := table.OuterJoin(tree, spells, table.JoinOptions{
		LeftOn:    []string{"spell_id"},
		RightOn:   []string{"id"},
		Suffixes:  [2]string{"_talent", "_spell"},
		LeftName:  "talent tree",
		RightName: "spells",
	})
	if err != nil {
		return nil, fmt.Errorf("merge spells: %w", err)
	}

	merged, err = table.OuterJoin(merged, pve, table.JoinOptions{
		LeftOn:    []string{"spell_id"},
		RightOn:   []string{"spell_id"},
		Suffixes:  [2]string{"", "_pve"},
		LeftName:  "talent tree",
		RightName: "pve talents",
	})
	if err != nil {
		return nil, fmt.Errorf("merge pve talents: %w", err)
	}

	merged, err = table.OuterJoin(merged, pvp, table.JoinOptions{
		LeftOn:    []string{"spell_id"},
		RightOn:   []string{"spell_id"},
		Suffixes:  [2]string{"", "_pvp"},
		LeftName:  "talent tree",
		RightName: "pvp talents",
	})
	if err != nil {
		return nil, fmt.Errorf("merge pvp talents: %w", err)
	}
	return merged, nil
}

// CleanDataset produces the exported table: duplicates dropped, nulls
// filled, noisy columns removed, id backfilled from id_pvp, and the
// from_pvp_set flag derived from PvP-tagged columns.
//
// The id backfill compares against opts.FillValue, so a genuine id equal
// to the fill value is treated as missing.
func CleanDataset(t *table.Table, opts CleanOptions) *table.Table {
	out := t.DropDuplicates().
		FillNull(opts.FillValue).
		Drop(opts.DropColumns...)

	if out.Has("id") && out.Has("id_pvp") {
		for i := 0; i < out.Len(); i++ {
			if out.Get(i, "id").Value == opts.FillValue {
				_ = out.Set(i, "id", out.Get(i, "id_pvp"))
			}
		}
	}

	var pvpCols []string
	for _, c := range out.Columns() {
		if c.Source == table.PvP {
			pvpCols = append(pvpCols, c.Name)
		}
	}
	out.AddColumn(table.Column{Name: FromPvPSetColumn, Source: table.Shared})
	for i := 0; i < out.Len(); i++ {
		flag := false
		for _, name := range pvpCols {
			if out.Get(i, name).Value != opts.MissingPvP {
				flag = true
				break
			}
		}
		_ = out.Set(i, FromPvPSetColumn, table.Str(strconv.FormatBool(flag)))
	}

	return out.Drop("id_pvp", "playable_specialization_key_href_pvp")
}
