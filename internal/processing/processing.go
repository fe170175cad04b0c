// Package processing converts harvested JSON documents into CSV tables and
// merges them into the cleaned analysis dataset.
package processing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/jsonflat"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/talent"
)

// Processor runs the process and clean stages.
type Processor struct {
	paths   config.PathsConfig
	opts    config.ProcessingConfig
	renames talent.RenameMaps
	sink    storage.TableSink
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Processor writing through sink. metrics may be nil.
func New(cfg *config.Config, sink storage.TableSink, metrics *observability.Metrics, logger *slog.Logger) *Processor {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	renames := talent.DefaultRenameMaps().WithOverrides(
		config.RenameMap(cfg.Processing.SpellNodeRenames),
		config.RenameMap(cfg.Processing.ChoiceNodeRenames),
	)
	return &Processor{
		paths:   cfg.Paths,
		opts:    cfg.Processing,
		renames: renames,
		sink:    sink,
		metrics: metrics,
		logger:  logger.With("component", "processing"),
	}
}

// Paths returns the file layout the processor reads and writes.
func (p *Processor) Paths() config.PathsConfig {
	return p.paths
}

// Process writes the spell, PvE, PvP and talent tree index CSVs, converts
// every spec tree into a tree CSV, combines those into the all-abilities
// table and extracts the talent node CSVs of every class tree.
func (p *Processor) Process(ctx context.Context) error {
	start := time.Now()
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"spells", p.spells},
		{"pve talents", p.pveTalents},
		{"pvp talents", p.pvpTalents},
		{"talent tree index", p.treeIndex},
		{"talent trees", func(ctx context.Context) error {
			return p.ConvertTreesToCSV(ctx, p.paths.SpecTreesDir, p.paths.TreesCSVDir)
		}},
		{"all abilities", func(ctx context.Context) error {
			return p.CombineFiles(ctx, p.paths.TreesCSVDir, p.paths.AllAbilities, ".csv")
		}},
		{"talent nodes", func(ctx context.Context) error {
			return p.ConvertTalentNodesCSV(ctx, p.paths.TreeNodesDir)
		}},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("process %s: %w", s.name, err)
		}
	}
	p.logger.Info("processing complete", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Processor) spells(ctx context.Context) error {
	t, err := jsonflat.LoadTable(p.paths.Spells, table.Spell)
	if err != nil {
		return err
	}
	return p.export(ctx, p.paths.SpellsCSV, t)
}

func (p *Processor) pveTalents(ctx context.Context) error {
	entries, err := p.entries(p.paths.PvETalents)
	if err != nil {
		return err
	}
	return p.export(ctx, p.paths.PvETalentsCSV, talent.FlattenPvE(entries))
}

func (p *Processor) pvpTalents(ctx context.Context) error {
	entries, err := p.entries(p.paths.PvPTalents)
	if err != nil {
		return err
	}
	return p.export(ctx, p.paths.PvPTalentsCSV, talent.FlattenPvP(entries))
}

func (p *Processor) entries(path string) ([]gjson.Result, error) {
	doc, err := jsonflat.LoadFile(path)
	if err != nil {
		return nil, err
	}
	entries, err := talent.Entries(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

func (p *Processor) treeIndex(ctx context.Context) error {
	doc, err := jsonflat.LoadFile(p.paths.TalentTreeIndex)
	if err != nil {
		return err
	}
	specs, err := talent.ExtractSpecTalentTrees(doc)
	if err != nil {
		return err
	}
	info, err := talent.ExtractTalentTreeInfo(specs, p.opts.Classes)
	if err != nil {
		return err
	}
	return p.export(ctx, p.paths.TalentTreeCSV, info)
}

type csvInput struct {
	path   string
	source table.Provenance
	dst    **table.Table
}

// Clean merges the all-abilities, PvE, PvP and spell CSVs and writes the
// cleaned dataset.
func (p *Processor) Clean(ctx context.Context) error {
	var tree, pve, pvp, spells *table.Table
	inputs := []csvInput{
		{p.paths.AllAbilities, table.Tree, &tree},
		{p.paths.PvETalentsCSV, table.PvE, &pve},
		{p.paths.PvPTalentsCSV, table.PvP, &pvp},
		{p.paths.SpellsCSV, table.Spell, &spells},
	}
	for _, in := range inputs {
		t, err := storage.ReadCSVFile(in.path, in.source)
		if err != nil {
			return fmt.Errorf("load datasets: %w", err)
		}
		*in.dst = t
	}

	merged, err := talent.MergeDatasets(tree, pve, pvp, spells)
	if err != nil {
		return err
	}
	p.logger.Info("datasets merged", "rows", merged.Len(), "columns", merged.Width())

	cleaned := talent.CleanDataset(merged, talent.CleanOptions{
		FillValue:   p.opts.FillValue,
		MissingPvP:  p.opts.MissingPvP,
		DropColumns: p.opts.DropColumns,
	})
	return p.export(ctx, p.paths.CleanedDataset, cleaned)
}

func (p *Processor) export(ctx context.Context, name string, t *table.Table) error {
	if err := p.sink.WriteTable(ctx, name, t); err != nil {
		return err
	}
	p.metrics.TablesExported.Add(1)
	p.metrics.RowsExported.Add(int64(t.Len()))
	return nil
}
