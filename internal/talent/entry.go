package talent

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/table"
)

// Fixed unroll widths. Rank descriptions and compatible slots beyond these
// are dropped.
const (
	MaxRankDescriptions = 3
	MaxCompatibleSlots  = 4
)

// PvEEntry is one flattened PvE talent. A nil field means the source entry
// lacked that path.
type PvEEntry struct {
	LinksSelfHref                 *string
	ID                            *string
	SpellKeyHref                  *string
	SpellName                     *string
	SpellID                       *string
	PlayableClassKeyHref          *string
	PlayableClassName             *string
	PlayableClassID               *string
	PlayableSpecializationKeyHref *string
	PlayableSpecializationName    *string
	PlayableSpecializationID      *string
	RankDescriptions              [MaxRankDescriptions]*string
}

// PvPEntry is one flattened PvP talent.
type PvPEntry struct {
	LinksSelfHref                 *string
	ID                            *string
	SpellKeyHref                  *string
	SpellName                     *string
	SpellID                       *string
	PlayableSpecializationKeyHref *string
	PlayableSpecializationName    *string
	PlayableSpecializationID      *string
	Description                   *string
	UnlockPlayerLevel             *string
	Slots                         [MaxCompatibleSlots]*string
}

// PvEColumns is the column order of the PvE table.
var PvEColumns = append([]string{
	"_links_self_href",
	"id",
	"spell_key_href",
	"spell_name",
	"spell_id",
	"playable_class_key_href",
	"playable_class_name",
	"playable_class_id",
	"playable_specialization_key_href",
	"playable_specialization_name",
	"playable_specialization_id",
}, numbered("rank_%d_description", MaxRankDescriptions)...)

// PvPColumns is the column order of the PvP table.
var PvPColumns = append([]string{
	"_links_self_href",
	"id",
	"spell_key_href",
	"spell_name",
	"spell_id",
	"playable_specialization_key_href",
	"playable_specialization_name",
	"playable_specialization_id",
	"description",
	"unlock_player_level",
}, numbered("slot_%d", MaxCompatibleSlots)...)

// NewPvEEntry flattens one PvE talent document. It never fails: any
// missing or null path yields a nil field.
func NewPvEEntry(v gjson.Result) PvEEntry {
	e := PvEEntry{
		LinksSelfHref:                 jsonflat.LookupString(v, "_links", "self", "href"),
		ID:                            jsonflat.LookupString(v, "id"),
		SpellKeyHref:                  jsonflat.LookupString(v, "spell", "key", "href"),
		SpellName:                     jsonflat.LookupString(v, "spell", "name"),
		SpellID:                       jsonflat.LookupString(v, "spell", "id"),
		PlayableClassKeyHref:          jsonflat.LookupString(v, "playable_class", "key", "href"),
		PlayableClassName:             jsonflat.LookupString(v, "playable_class", "name"),
		PlayableClassID:               jsonflat.LookupString(v, "playable_class", "id"),
		PlayableSpecializationKeyHref: jsonflat.LookupString(v, "playable_specialization", "key", "href"),
		PlayableSpecializationName:    jsonflat.LookupString(v, "playable_specialization", "name"),
		PlayableSpecializationID:      jsonflat.LookupString(v, "playable_specialization", "id"),
	}
	ranks := jsonflat.List(v, "rank_descriptions")
	for i := 0; i < MaxRankDescriptions && i < len(ranks); i++ {
		e.RankDescriptions[i] = jsonflat.LookupString(ranks[i], "description")
	}
	return e
}

// NewPvPEntry flattens one PvP talent document.
func NewPvPEntry(v gjson.Result) PvPEntry {
	e := PvPEntry{
		LinksSelfHref:                 jsonflat.LookupString(v, "_links", "self", "href"),
		ID:                            jsonflat.LookupString(v, "id"),
		SpellKeyHref:                  jsonflat.LookupString(v, "spell", "key", "href"),
		SpellName:                     jsonflat.LookupString(v, "spell", "name"),
		SpellID:                       jsonflat.LookupString(v, "spell", "id"),
		PlayableSpecializationKeyHref: jsonflat.LookupString(v, "playable_specialization", "key", "href"),
		PlayableSpecializationName:    jsonflat.LookupString(v, "playable_specialization", "name"),
		PlayableSpecializationID:      jsonflat.LookupString(v, "playable_specialization", "id"),
		Description:                   jsonflat.LookupString(v, "description"),
		UnlockPlayerLevel:             jsonflat.LookupString(v, "unlock_player_level"),
	}
	slots := jsonflat.List(v, "compatible_slots")
	for i := 0; i < MaxCompatibleSlots && i < len(slots); i++ {
		e.Slots[i] = jsonflat.String(slots[i])
	}
	return e
}

// Cells returns the entry in PvEColumns order.
func (e PvEEntry) Cells() []table.Cell {
	cells := []table.Cell{
		table.Ptr(e.LinksSelfHref),
		table.Ptr(e.ID),
		table.Ptr(e.SpellKeyHref),
		table.Ptr(e.SpellName),
		table.Ptr(e.SpellID),
		table.Ptr(e.PlayableClassKeyHref),
		table.Ptr(e.PlayableClassName),
		table.Ptr(e.PlayableClassID),
		table.Ptr(e.PlayableSpecializationKeyHref),
		table.Ptr(e.PlayableSpecializationName),
		table.Ptr(e.PlayableSpecializationID),
	}
	for _, d := range e.RankDescriptions {
		cells = append(cells, table.Ptr(d))
	}
	return cells
}

// Cells returns the entry in PvPColumns order.
func (e PvPEntry) Cells() []table.Cell {
	cells := []table.Cell{
		table.Ptr(e.LinksSelfHref),
		table.Ptr(e.ID),
		table.Ptr(e.SpellKeyHref),
		table.Ptr(e.SpellName),
		table.Ptr(e.SpellID),
		table.Ptr(e.PlayableSpecializationKeyHref),
		table.Ptr(e.PlayableSpecializationName),
		table.Ptr(e.PlayableSpecializationID),
		table.Ptr(e.Description),
		table.Ptr(e.UnlockPlayerLevel),
	}
	for _, s := range e.Slots {
		cells = append(cells, table.Ptr(s))
	}
	return cells
}

// FlattenPvE builds the PvE table, one row per entry and duplicates kept.
// Null entries, which stand for failed detail fetches, are skipped.
func FlattenPvE(entries []gjson.Result) *table.Table {
	t := table.NewTagged(table.PvE, PvEColumns...)
	for _, v := range entries {
		if jsonflat.IsNull(v) {
			continue
		}
		_ = t.AppendRow(NewPvEEntry(v).Cells()...)
	}
	return t
}

// FlattenPvP builds the PvP table, one row per entry and duplicates kept.
func FlattenPvP(entries []gjson.Result) *table.Table {
	t := table.NewTagged(table.PvP, PvPColumns...)
	for _, v := range entries {
		if jsonflat.IsNull(v) {
			continue
		}
		_ = t.AppendRow(NewPvPEntry(v).Cells()...)
	}
	return t
}

// Entries returns the elements of a talent detail document, which is a JSON
// array of entries. A single object is treated as a one-entry list.
func Entries(doc gjson.Result) ([]gjson.Result, error) {
	switch {
	case doc.IsArray():
		return doc.Array(), nil
	case doc.IsObject():
		return []gjson.Result{doc}, nil
	case jsonflat.IsNull(doc):
		return nil, nil
	default:
		return nil, malformed("talent document is not a list of entries")
	}
}

func numbered(format string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf(format, i+1)
	}
	return out
}
