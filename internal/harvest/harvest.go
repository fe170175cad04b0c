// Package harvest downloads the Game Data API documents the processing
// stage consumes: spell search pages and spell details, PvE and PvP talent
// indexes and details, the talent tree index, class tree nodes and spec
// trees. Every output is written atomically; a failed step leaves no file
// under its final name.
package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/talent"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// API is the subset of the Game Data API the harvester calls.
type API interface {
	SpellSearch(ctx context.Context, page int) (json.RawMessage, error)
	Spell(ctx context.Context, id string) (json.RawMessage, error)
	TalentIndex(ctx context.Context) (json.RawMessage, error)
	Talent(ctx context.Context, id string) (json.RawMessage, error)
	PvPTalentIndex(ctx context.Context) (json.RawMessage, error)
	PvPTalent(ctx context.Context, id string) (json.RawMessage, error)
	TalentTreeIndex(ctx context.Context) (json.RawMessage, error)
	TalentTree(ctx context.Context, treeID string) (json.RawMessage, error)
	SpecTree(ctx context.Context, treeID, specID string) (json.RawMessage, error)
}

// Step names accepted by Run.
const (
	StepSpellIndex = "spell-index"
	StepSpells     = "spells"
	StepPvE        = "pve-talents"
	StepPvP        = "pvp-talents"
	StepTreeIndex  = "tree-index"
	StepTreeNodes  = "tree-nodes"
	StepSpecTrees  = "spec-trees"
)

// Steps lists every step in execution order. Later steps read the files
// written by earlier ones.
var Steps = []string{
	StepSpellIndex, StepSpells, StepPvE, StepPvP,
	StepTreeIndex, StepTreeNodes, StepSpecTrees,
}

// Harvester runs the download steps.
type Harvester struct {
	api         API
	paths       config.PathsConfig
	classes     map[string]string
	concurrency int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// New creates a Harvester. metrics may be nil.
func New(api API, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Harvester {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	n := cfg.API.Concurrency
	if n < 1 {
		n = 1
	}
	return &Harvester{
		api:         api,
		paths:       cfg.Paths,
		classes:     cfg.Processing.Classes,
		concurrency: n,
		metrics:     metrics,
		logger:      logger.With("component", "harvest"),
	}
}

// Run executes the named steps in their canonical order, or every step when
// only is empty.
func (h *Harvester) Run(ctx context.Context, only ...string) error {
	want := make(map[string]bool, len(only))
	for _, s := range only {
		if !isStep(s) {
			return fmt.Errorf("unknown harvest step %q (valid: %s)", s, strings.Join(Steps, ", "))
		}
		want[s] = true
	}

	run := map[string]func(context.Context) error{
		StepSpellIndex: h.SpellIndex,
		StepSpells:     h.Spells,
		StepPvE:        h.PvETalents,
		StepPvP:        h.PvPTalents,
		StepTreeIndex:  h.TalentTreeIndex,
		StepTreeNodes:  h.TreeNodes,
		StepSpecTrees:  h.SpecTrees,
	}
	for _, step := range Steps {
		if len(want) > 0 && !want[step] {
			continue
		}
		start := time.Now()
		h.logger.Info("step started", "step", step)
		if err := run[step](ctx); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		h.logger.Info("step finished", "step", step, "duration", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func isStep(s string) bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

// SpellIndex writes every spell search page, following pageCount from the
// first page.
func (h *Harvester) SpellIndex(ctx context.Context) error {
	first, err := h.api.SpellSearch(ctx, 1)
	if err != nil {
		return err
	}
	if first == nil {
		return fmt.Errorf("spell search returned no first page")
	}
	doc, err := jsonflat.Decode(first)
	if err != nil {
		return &types.MalformedInputError{Source: "search/spell", Reason: err.Error(), Err: err}
	}
	pageCount := 1
	if s := jsonflat.LookupString(doc, "pageCount"); s != nil {
		if pageCount, err = strconv.Atoi(*s); err != nil {
			return &types.MalformedInputError{Source: "search/spell", Reason: "pageCount is not an integer"}
		}
	}

	pages := make([]string, 0, pageCount)
	for p := 2; p <= pageCount; p++ {
		pages = append(pages, strconv.Itoa(p))
	}
	rest, err := h.fetchAll(ctx, pages, func(ctx context.Context, page string) (json.RawMessage, error) {
		n, _ := strconv.Atoi(page)
		return h.api.SpellSearch(ctx, n)
	})
	if err != nil {
		return err
	}
	h.logger.Info("spell search pages fetched", "pages", pageCount)
	return h.writeArray(h.paths.SpellsIndex, append([]json.RawMessage{first}, rest...))
}

// Spells fetches the detail document of every spell in the search pages.
func (h *Harvester) Spells(ctx context.Context) error {
	doc, err := jsonflat.LoadFile(h.paths.SpellsIndex)
	if err != nil {
		return err
	}
	var ids []string
	for _, page := range pagesOf(doc) {
		for _, r := range jsonflat.List(page, "results") {
			if id := jsonflat.LookupString(r, "data", "id"); id != nil {
				ids = append(ids, *id)
			}
		}
	}
	docs, err := h.fetchAll(ctx, ids, h.api.Spell)
	if err != nil {
		return err
	}
	return h.writeArray(h.paths.Spells, docs)
}

// PvETalents saves the talent index and the detail of every talent in it.
func (h *Harvester) PvETalents(ctx context.Context) error {
	return h.talents(ctx, h.api.TalentIndex, h.api.Talent, "talents",
		h.paths.PvETalentsIndex, h.paths.PvETalents)
}

// PvPTalents saves the PvP talent index and the detail of every PvP talent.
func (h *Harvester) PvPTalents(ctx context.Context) error {
	return h.talents(ctx, h.api.PvPTalentIndex, h.api.PvPTalent, "pvp_talents",
		h.paths.PvPTalentsIndex, h.paths.PvPTalents)
}

func (h *Harvester) talents(
	ctx context.Context,
	index func(context.Context) (json.RawMessage, error),
	detail func(context.Context, string) (json.RawMessage, error),
	listKey, indexPath, outPath string,
) error {
	raw, err := index(ctx)
	if err != nil {
		return err
	}
	if err := h.writeDocument(indexPath, raw); err != nil {
		return err
	}

	doc, err := jsonflat.Decode(orNull(raw))
	if err != nil {
		return &types.MalformedInputError{Source: indexPath, Reason: err.Error(), Err: err}
	}
	var ids []string
	for _, t := range jsonflat.List(doc, listKey) {
		if id := jsonflat.LookupString(t, "id"); id != nil {
			ids = append(ids, *id)
		}
	}
	docs, err := h.fetchAll(ctx, ids, detail)
	if err != nil {
		return err
	}
	return h.writeArray(outPath, docs)
}

// TalentTreeIndex saves the talent tree index.
func (h *Harvester) TalentTreeIndex(ctx context.Context) error {
	raw, err := h.api.TalentTreeIndex(ctx)
	if err != nil {
		return err
	}
	return h.writeDocument(h.paths.TalentTreeIndex, raw)
}

// specRows reads the saved talent tree index into one row per spec with
// talent_tree, spec, class and class_spec.
func (h *Harvester) specRows() (*table.Table, error) {
	doc, err := jsonflat.LoadFile(h.paths.TalentTreeIndex)
	if err != nil {
		return nil, err
	}
	specs, err := talent.ExtractSpecTalentTrees(doc)
	if err != nil {
		return nil, err
	}
	return talent.ExtractTalentTreeInfo(specs, h.classes)
}

// TreeNodes writes the class talent tree of every class named in the index
// to <TreeNodesDir>/<ClassName>.json, with spaces removed from the name.
func (h *Harvester) TreeNodes(ctx context.Context) error {
	rows, err := h.specRows()
	if err != nil {
		return err
	}

	var trees, files []string
	seen := make(map[string]bool)
	for i := 0; i < rows.Len(); i++ {
		tree, class := rows.Get(i, "talent_tree"), rows.Get(i, "class")
		if !tree.Valid || !class.Valid {
			h.logger.Warn("spec tree has no known class", "url", rows.Get(i, "url").Value)
			continue
		}
		if seen[tree.Value] {
			continue
		}
		seen[tree.Value] = true
		trees = append(trees, tree.Value)
		files = append(files, filepath.Join(h.paths.TreeNodesDir, strings.ReplaceAll(class.Value, " ", "")+".json"))
	}

	docs, err := h.fetchAll(ctx, trees, h.api.TalentTree)
	if err != nil {
		return err
	}
	for i, d := range docs {
		if err := h.writeArray(files[i], []json.RawMessage{d}); err != nil {
			return err
		}
	}
	return nil
}

// SpecTrees writes every specialization's talent tree to
// <SpecTreesDir>/<Spec Class>.json.
func (h *Harvester) SpecTrees(ctx context.Context) error {
	rows, err := h.specRows()
	if err != nil {
		return err
	}

	var keys, files []string
	for i := 0; i < rows.Len(); i++ {
		tree, spec, name := rows.Get(i, "talent_tree"), rows.Get(i, "spec"), rows.Get(i, "class_spec")
		if !tree.Valid || !spec.Valid || !name.Valid {
			h.logger.Warn("skipping spec tree without class_spec", "url", rows.Get(i, "url").Value)
			continue
		}
		keys = append(keys, tree.Value+"/"+spec.Value)
		files = append(files, filepath.Join(h.paths.SpecTreesDir, name.Value+".json"))
	}

	docs, err := h.fetchAll(ctx, keys, func(ctx context.Context, key string) (json.RawMessage, error) {
		tree, spec, _ := strings.Cut(key, "/")
		return h.api.SpecTree(ctx, tree, spec)
	})
	if err != nil {
		return err
	}
	for i, d := range docs {
		if err := h.writeDocument(files[i], d); err != nil {
			return err
		}
	}
	return nil
}

// fetchAll calls get for every id on a bounded pool and returns the
// documents in id order. The first error cancels the remaining fetches.
func (h *Harvester) fetchAll(ctx context.Context, ids []string, get func(context.Context, string) (json.RawMessage, error)) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(ids))
	p := pool.New().
		WithMaxGoroutines(h.concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, id := range ids {
		p.Go(func(ctx context.Context) error {
			h.metrics.ActiveWorkers.Add(1)
			defer h.metrics.ActiveWorkers.Add(-1)

			doc, err := get(ctx, id)
			if err != nil {
				return err
			}
			results[i] = doc
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		h.logger.Debug("documents fetched", "count", len(ids))
	}
	return results, nil
}

func (h *Harvester) writeArray(path string, docs []json.RawMessage) error {
	w, err := storage.NewJSONArrayWriter(path)
	if err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	for _, d := range docs {
		if err := w.Write(d); err != nil {
			w.Abort()
			return &types.StorageError{Backend: "json", Err: fmt.Errorf("%s: %w", path, err)}
		}
		h.countDocument(d)
	}
	if err := w.Close(); err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	h.logger.Info("documents written", "path", path, "count", len(docs))
	return nil
}

func (h *Harvester) writeDocument(path string, raw json.RawMessage) error {
	err := storage.WriteFileAtomic(path, func(w io.Writer) error {
		var buf bytes.Buffer
		if err := json.Indent(&buf, orNull(raw), "", "    "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	})
	if err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	h.countDocument(raw)
	h.logger.Info("document written", "path", path)
	return nil
}

func (h *Harvester) countDocument(raw json.RawMessage) {
	h.metrics.DocumentsWritten.Add(1)
	if raw == nil {
		h.metrics.NullDocuments.Add(1)
	}
}

func orNull(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return json.RawMessage("null")
	}
	return raw
}

// pagesOf returns the elements of an array document, or the document
// itself when it is a single page.
func pagesOf(doc gjson.Result) []gjson.Result {
	switch {
	case doc.IsArray():
		return doc.Array()
	case jsonflat.IsNull(doc):
		return nil
	default:
		return []gjson.Result{doc}
	}
}
