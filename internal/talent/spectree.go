package talent

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// ClassNameColumn holds the class derived from a file name.
const ClassNameColumn = "playable_class.name"

// ExtractSpecTalentTrees lists the spec talent trees of a talent-tree index
// document: every field of each spec_talent_trees entry except key, plus a
// url column holding key.href.
func ExtractSpecTalentTrees(doc gjson.Result) (*table.Table, error) {
	recs, err := jsonflat.Normalize(doc, jsonflat.DefaultSep)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, malformed("talent tree index is empty")
	}
	v, ok := recs[0].Get("spec_talent_trees")
	if !ok {
		return nil, malformed("talent tree index has no spec_talent_trees")
	}
	var specs []gjson.Result
	switch {
	case v.IsArray():
		specs = v.Array()
	case !jsonflat.IsNull(v):
		return nil, malformed("spec_talent_trees is not a list")
	}

	t := table.New()
	for i, obj := range specs {
		if !obj.IsObject() {
			return nil, malformed("spec_talent_trees[%d] is not an object", i)
		}
		rec := jsonflat.Flatten(obj, jsonflat.DefaultSep)
		var (
			names []string
			cells []table.Cell
		)
		for _, k := range rec.Keys {
			if k == "key" || strings.HasPrefix(k, "key.") {
				continue
			}
			names = append(names, k)
			cells = append(cells, jsonflat.Cell(rec.Values[k]))
		}
		names = append(names, "url")
		cells = append(cells, table.Ptr(jsonflat.LookupString(obj, "key", "href")))
		t.AppendRecord(names, cells, table.Shared)
	}
	if !t.Has("url") {
		t.AddColumn(table.Column{Name: "url", Source: table.Shared})
	}
	return t, nil
}

// ExtractTalentTreeInfo adds talent_tree, spec, class and class_spec columns
// derived from each row's url. Rows whose url does not match, or whose tree
// id is not in classes, get nulls.
func ExtractTalentTreeInfo(t *table.Table, classes map[string]string) (*table.Table, error) {
	if !t.Has("url") {
		return nil, &types.SchemaMismatchError{Table: "talent tree index", Missing: []string{"url"}}
	}
	out := t.Clone()
	for _, name := range []string{"talent_tree", "spec", "class", "class_spec"} {
		out.AddColumn(table.Column{Name: name, Source: table.Shared})
	}
	for i := 0; i < out.Len(); i++ {
		tree, spec, ok := ExtractInfoFromURL(out.Get(i, "url").Value)
		if !ok {
			continue
		}
		treeID := strconv.Itoa(tree)
		_ = out.Set(i, "talent_tree", table.Str(treeID))
		_ = out.Set(i, "spec", table.Str(strconv.Itoa(spec)))

		class, ok := classes[treeID]
		if !ok {
			continue
		}
		_ = out.Set(i, "class", table.Str(class))
		if name := out.Get(i, "name"); name.Valid {
			_ = out.Set(i, "class_spec", table.Str(name.Value+" "+class))
		}
	}
	return out, nil
}

var fileNameNoise = regexp.MustCompile(`(\s|_|\.+)`)

// ClassFromFileName derives a class name from a file such as
// "data/DeathKnight.csv". Extensions in excluded are stripped wherever
// they appear, then whitespace, underscores and dots. The result must match
// a class name with its spaces removed, otherwise ok is false.
func ClassFromFileName(path string, excluded []string, classes map[string]string) (string, bool) {
	base := filepath.Base(path)
	for _, ext := range excluded {
		base = strings.ReplaceAll(base, "."+ext, "")
	}
	name := strings.TrimSpace(fileNameNoise.ReplaceAllString(base, ""))
	for _, c := range classes {
		if strings.ReplaceAll(c, " ", "") == name {
			return name, true
		}
	}
	return "", false
}

// AddClassSpecName sets the playable_class.name column of every row to the
// class derived from path, or null when the file name names no class.
func AddClassSpecName(t *table.Table, path string, excluded []string, classes map[string]string) *table.Table {
	out := t.Clone()
	out.AddColumn(table.Column{Name: ClassNameColumn, Source: table.Shared})
	cell := table.Null
	if name, ok := ClassFromFileName(path, excluded, classes); ok {
		cell = table.Str(name)
	}
	for i := 0; i < out.Len(); i++ {
		_ = out.Set(i, ClassNameColumn, cell)
	}
	return out
}

// ExtractTalentNodes lists spell_name and description for every ranked
// talent node of a spec tree document, tagged with the class derived from
// path. Nodes without ranks and rows missing either field are skipped.
func ExtractTalentNodes(doc gjson.Result, path string, excluded []string, classes map[string]string) (*table.Table, error) {
	recs, err := jsonflat.Normalize(doc, jsonflat.DefaultSep)
	if err != nil {
		return nil, err
	}

	t := table.NewTagged(table.Tree, "spell_name", "description")
	for _, rec := range recs {
		nodes, _ := rec.Get("talent_nodes")
		if !nodes.IsArray() {
			continue
		}
		for _, n := range nodes.Array() {
			ranks := jsonflat.List(n, ranksKey)
			for _, r := range ranks {
				name := jsonflat.LookupString(r, "tooltip", "spell_tooltip", "spell", "name")
				desc := jsonflat.LookupString(r, "tooltip", "spell_tooltip", "description")
				if name == nil || desc == nil {
					continue
				}
				_ = t.AppendRow(table.Str(*name), table.Str(*desc))
			}
		}
	}
	return AddClassSpecName(t, path, excluded, classes), nil
}
