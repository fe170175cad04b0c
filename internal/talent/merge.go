package talent

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/table"
)

// RenameMaps map the dotted source columns of each tree table onto the
// shared canonical names. Columns absent from a map keep their name.
type RenameMaps struct {
	SpellNode  map[string]string `mapstructure:"spell_node"  yaml:"spell_node"`
	ChoiceNode map[string]string `mapstructure:"choice_node" yaml:"choice_node"`
}

// DefaultRenameMaps returns the canonical mappings for Game Data API
// talent-tree documents.
func DefaultRenameMaps() RenameMaps {
	return RenameMaps{
		SpellNode: map[string]string{
			"rank":                                 "rank",
			"default_points":                       "default_points",
			"tooltip.talent.key.href":              "talent_href",
			"tooltip.talent.name":                  "talent_name",
			"tooltip.talent.id":                    "talent_id",
			"tooltip.spell_tooltip.spell.key.href": "spell_href",
			"tooltip.spell_tooltip.spell.name":     "spell_name",
			"tooltip.spell_tooltip.spell.id":       "spell_id",
			"tooltip.spell_tooltip.description":    "spell_description",
			"tooltip.spell_tooltip.cast_time":      "cast_time",
			"tooltip.spell_tooltip.power_cost":     "power_cost",
			"tooltip.spell_tooltip.cooldown":       "cooldown",
			"tooltip.spell_tooltip.range":          "tooltip_range",
		},
		ChoiceNode: map[string]string{
			"talent.key.href":              "talent_href",
			"talent.name":                  "talent_name",
			"talent.id":                    "talent_id",
			"spell_tooltip.spell.key.href": "spell_href",
			"spell_tooltip.spell.name":     "spell_name",
			"spell_tooltip.spell.id":       "spell_id",
			"spell_tooltip.description":    "spell_description",
			"spell_tooltip.cast_time":      "cast_time",
			"spell_tooltip.power_cost":     "power_cost",
			"spell_tooltip.cooldown":       "cooldown",
		},
	}
}

// WithOverrides returns a copy of m with the given entries added or
// replaced.
func (m RenameMaps) WithOverrides(spellNode, choiceNode map[string]string) RenameMaps {
	return RenameMaps{
		SpellNode:  mergeMap(m.SpellNode, spellNode),
		ChoiceNode: mergeMap(m.ChoiceNode, choiceNode),
	}
}

func mergeMap(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// JoinKeys identify one talent option across the spell and choice tables.
var JoinKeys = []string{
	"talent_href",
	"talent_name",
	"talent_id",
	"spell_href",
	"spell_name",
	"spell_id",
	"spell_description",
	"cast_time",
}

// MergeFrames renames both tree tables with maps and full-outer-joins them
// on JoinKeys, choice nodes on the left. Non-key columns present on both
// sides come back as <name>_x (choice) and <name>_y (spell); see
// CoalesceSuffixed.
func MergeFrames(spellNodes, choiceNodes *table.Table, maps RenameMaps) (*table.Table, error) {
	spell, err := spellNodes.Rename(maps.SpellNode)
	if err != nil {
		return nil, fmt.Errorf("rename spell nodes: %w", err)
	}
	choice, err := choiceNodes.Rename(maps.ChoiceNode)
	if err != nil {
		return nil, fmt.Errorf("rename choice nodes: %w", err)
	}
	opts := table.On(JoinKeys...)
	opts.LeftName, opts.RightName = "choice nodes", "spell nodes"
	return table.OuterJoin(choice, spell, opts)
}

// CoalesceSuffixed folds <base>_x and <base>_y into a single <base> column
// appended at the end, concatenating the two halves with null read as
// empty. The result is null only when both halves are. Tables without both
// halves are returned unchanged.
func CoalesceSuffixed(t *table.Table, base string) *table.Table {
	xName, yName := base+"_x", base+"_y"
	xCol, okX := t.Column(xName)
	if !okX || !t.Has(yName) {
		return t
	}
	out := t.Drop(xName, yName)
	out.AddColumn(table.Column{Name: base, Source: xCol.Source})
	for i := 0; i < t.Len(); i++ {
		x, y := t.Get(i, xName), t.Get(i, yName)
		if !x.Valid && !y.Valid {
			continue
		}
		_ = out.Set(i, base, table.Str(x.Value+y.Value))
	}
	return out
}

// BuildTreeTable flattens a talent-tree document, merges its two tables and
// coalesces the power_cost and cooldown halves.
func BuildTreeTable(doc gjson.Result, maps RenameMaps) (*table.Table, error) {
	spellNodes, choiceNodes, err := FlattenTree(doc)
	if err != nil {
		return nil, err
	}
	merged, err := MergeFrames(spellNodes, choiceNodes, maps)
	if err != nil {
		return nil, err
	}
	merged = CoalesceSuffixed(merged, "power_cost")
	merged = CoalesceSuffixed(merged, "cooldown")
	return merged, nil
}
