package processing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/talent"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// listFiles walks dir in lexical order and returns the files whose name
// ends with ext. Hidden files are skipped. An empty ext matches every
// file.
func listFiles(dir, ext string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, &types.NotFoundError{Path: dir, Err: err}
		}
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if ext == "" || strings.HasSuffix(d.Name(), ext) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

// ConvertTreesToCSV flattens every spec talent tree JSON file in dir into
// a merged tree table and writes it to outDir under the same base name.
// Each table gets a playable_class.name column, taken from the document's
// playable_class when present and from the file name otherwise.
func (p *Processor) ConvertTreesToCSV(ctx context.Context, dir, outDir string) error {
	files, err := listFiles(dir, ".json")
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := jsonflat.LoadFile(path)
		if err != nil {
			return err
		}
		t, err := talent.BuildTreeTable(doc, p.renames)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		t = talent.AddClassSpecName(t, path, p.opts.ExcludedExtensions, p.opts.Classes)
		if class := documentClass(doc); class != "" {
			for i := 0; i < t.Len(); i++ {
				_ = t.Set(i, talent.ClassNameColumn, table.Str(class))
			}
		}

		base := strings.TrimSuffix(filepath.Base(path), ".json")
		if err := p.export(ctx, filepath.Join(outDir, base+".csv"), t); err != nil {
			return err
		}
	}
	p.logger.Info("talent trees converted", "files", len(files), "dir", outDir)
	return nil
}

// documentClass returns the playable class name of a spec tree document
// with spaces removed, or "" when the document does not carry one.
func documentClass(doc gjson.Result) string {
	if doc.IsArray() {
		doc = doc.Get("0")
	}
	name := jsonflat.LookupString(doc, "playable_class", "name")
	if name == nil {
		return ""
	}
	return strings.ReplaceAll(*name, " ", "")
}

// CombineFiles concatenates every file under dir ending with ext into one
// table over the union of their headers and writes it to out.
func (p *Processor) CombineFiles(ctx context.Context, dir, out, ext string) error {
	files, err := listFiles(dir, ext)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return &types.NotFoundError{Path: filepath.Join(dir, "*"+ext), Err: fs.ErrNotExist}
	}

	tables := make([]*table.Table, 0, len(files))
	for _, path := range files {
		t, err := storage.ReadCSVFile(path, table.Tree)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}
	combined := table.Concat(tables...)
	p.logger.Info("files combined", "files", len(files), "rows", combined.Len(), "out", out)
	return p.export(ctx, out, combined)
}

// ConvertTalentNodesCSV writes a spell_name/description CSV next to every
// class tree JSON file in dir. Existing CSV files are not read.
func (p *Processor) ConvertTalentNodesCSV(ctx context.Context, dir string) error {
	files, err := listFiles(dir, "")
	if err != nil {
		return err
	}
	n := 0
	for _, path := range files {
		if strings.HasSuffix(path, ".csv") {
			continue
		}
		doc, err := jsonflat.LoadFile(path)
		if err != nil {
			return err
		}
		t, err := talent.ExtractTalentNodes(doc, path, p.opts.ExcludedExtensions, p.opts.Classes)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		out := strings.TrimSuffix(path, filepath.Ext(path)) + ".csv"
		if err := p.export(ctx, out, t); err != nil {
			return err
		}
		n++
	}
	p.logger.Info("talent nodes converted", "files", n, "dir", dir)
	return nil
}

// UpdateTalentCSVs rewrites every CSV in dir with a playable_class.name
// column derived from its file name.
func (p *Processor) UpdateTalentCSVs(ctx context.Context, dir string) error {
	files, err := listFiles(dir, ".csv")
	if err != nil {
		return err
	}
	for _, path := range files {
		t, err := storage.ReadCSVFile(path, table.Tree)
		if err != nil {
			return err
		}
		t = talent.AddClassSpecName(t.Drop(talent.ClassNameColumn), path, p.opts.ExcludedExtensions, p.opts.Classes)
		if err := p.export(ctx, path, t); err != nil {
			return err
		}
	}
	p.logger.Info("talent CSVs updated", "files", len(files), "dir", dir)
	return nil
}
