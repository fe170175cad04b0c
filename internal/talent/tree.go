// Package talent turns talent-tree, PvE and PvP talent documents into flat
// tables and merges them with the spell table into one analysis dataset.
package talent

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

const (
	classNodesKey = "class_talent_nodes"
	ranksKey      = "ranks"
	choicesKey    = "choice_of_tooltips"
)

// SpellNodeColumns are always present in the spell node table, even when a
// document never mentions them, so the frame merge can rely on them.
var SpellNodeColumns = []string{
	"rank",
	"default_points",
	"tooltip.talent.key.href",
	"tooltip.talent.name",
	"tooltip.talent.id",
	"tooltip.spell_tooltip.spell.key.href",
	"tooltip.spell_tooltip.spell.name",
	"tooltip.spell_tooltip.spell.id",
	"tooltip.spell_tooltip.description",
	"tooltip.spell_tooltip.cast_time",
	"tooltip.spell_tooltip.power_cost",
	"tooltip.spell_tooltip.cooldown",
	"tooltip.spell_tooltip.range",
}

// ChoiceNodeColumns are always present in the choice node table.
var ChoiceNodeColumns = []string{
	"talent.key.href",
	"talent.name",
	"talent.id",
	"spell_tooltip.spell.key.href",
	"spell_tooltip.spell.name",
	"spell_tooltip.spell.id",
	"spell_tooltip.description",
	"spell_tooltip.cast_time",
	"spell_tooltip.power_cost",
	"spell_tooltip.cooldown",
	"spell_tooltip.range",
}

// FlattenTree splits a class talent-tree document into a spell node table
// (one row per rank of every node) and a choice node table (one row per
// alternative of every choice_of_tooltips list). Both are tagged as tree
// columns.
//
// Only the first grouping of class_talent_nodes is read. A document whose
// top level holds more than one grouping is rejected rather than partially
// read. Nodes without ranks contribute no rows.
func FlattenTree(doc gjson.Result) (spellNodes, choiceNodes *table.Table, err error) {
	nodes, err := classNodes(doc)
	if err != nil {
		return nil, nil, err
	}

	spellNodes = table.NewTagged(table.Tree, SpellNodeColumns...)
	choiceNodes = table.NewTagged(table.Tree, ChoiceNodeColumns...)

	for i, node := range nodes {
		if jsonflat.IsNull(node) {
			continue
		}
		if !node.IsObject() {
			return nil, nil, malformed("%s[%d] is not an object", classNodesKey, i)
		}
		ranks, ok := jsonflat.Lookup(node, ranksKey)
		if !ok {
			continue
		}
		if !ranks.IsArray() {
			return nil, nil, malformed("%s[%d].%s is not a list", classNodesKey, i, ranksKey)
		}
		for j, rank := range ranks.Array() {
			if !rank.IsObject() {
				return nil, nil, malformed("%s[%d].%s[%d] is not an object", classNodesKey, i, ranksKey, j)
			}
			rec := jsonflat.Flatten(rank, jsonflat.DefaultSep)
			if choices, ok := rec.Get(choicesKey); ok {
				if err := appendChoices(choiceNodes, choices); err != nil {
					return nil, nil, err
				}
				rec = rec.Without(choicesKey)
			}
			jsonflat.AppendRecords(spellNodes, []*jsonflat.Record{rec}, table.Tree)
		}
	}
	return spellNodes, choiceNodes, nil
}

// classNodes returns the node list of the single class_talent_nodes grouping.
func classNodes(doc gjson.Result) ([]gjson.Result, error) {
	recs, err := jsonflat.Normalize(doc, jsonflat.DefaultSep)
	if err != nil {
		return nil, err
	}
	var (
		nodes gjson.Result
		found int
	)
	for _, rec := range recs {
		v, ok := rec.Get(classNodesKey)
		if !ok {
			continue
		}
		if found == 0 {
			nodes = v
		}
		found++
	}
	switch {
	case found == 0:
		return nil, malformed("document has no %s", classNodesKey)
	case found > 1:
		return nil, malformed("document has %d %s groupings, want 1", found, classNodesKey)
	}
	if jsonflat.IsNull(nodes) {
		return nil, nil
	}
	if !nodes.IsArray() {
		return nil, malformed("%s is not a list", classNodesKey)
	}
	return nodes.Array(), nil
}

// appendChoices explodes a choice_of_tooltips value into rows. Null
// alternatives are dropped; a lone object counts as a single alternative.
func appendChoices(t *table.Table, v gjson.Result) error {
	var alts []gjson.Result
	switch {
	case jsonflat.IsNull(v):
		return nil
	case v.IsArray():
		alts = v.Array()
	case v.IsObject():
		alts = []gjson.Result{v}
	default:
		return malformed("%s is not a list", choicesKey)
	}
	for k, a := range alts {
		if jsonflat.IsNull(a) {
			continue
		}
		if !a.IsObject() {
			return malformed("%s[%d] is not an object", choicesKey, k)
		}
		jsonflat.AppendRecords(t, []*jsonflat.Record{jsonflat.Flatten(a, jsonflat.DefaultSep)}, table.Tree)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return &types.MalformedInputError{Reason: fmt.Sprintf(format, args...)}
}
