package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/WoWHarvest/internal/fetcher"
	"github.com/IshaanNene/WoWHarvest/internal/harvest"
	"github.com/IshaanNene/WoWHarvest/internal/processing"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
	"github.com/IshaanNene/WoWHarvest/internal/wowapi"
)

var (
	fetchOnly   []string
	concurrency int
)

// fetchCmd creates the "fetch" subcommand.
func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download spell, talent and talent tree documents from the Game Data API",
		Long: fmt.Sprintf(`Download the raw JSON documents the processing stage reads.

Steps run in order: %s.
Use --only to run a subset; later steps read the files earlier steps wrote.`,
			strings.Join(harvest.Steps, ", ")),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			return runFetch(ctx, e)
		},
	}
	addFetchFlags(cmd)
	return cmd
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&fetchOnly, "only", nil, "run only these steps (comma-separated)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "parallel detail requests (0 = use config)")
}

func runFetch(ctx context.Context, e *env) error {
	if concurrency > 0 {
		e.cfg.API.Concurrency = concurrency
	}

	tokens, err := wowapi.NewTokenSource(ctx, &e.cfg.API)
	if err != nil {
		return err
	}
	opts := fetcher.OptionsFromConfig(&e.cfg.API)
	opts.TokenSource = tokens
	f, err := fetcher.NewHTTPFetcher(opts, e.logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	client, err := wowapi.NewClient(f, &e.cfg.API, e.metrics, e.logger)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := harvest.New(client, e.cfg, e.metrics, e.logger).Run(ctx, fetchOnly...); err != nil {
		return err
	}

	stats := e.metrics.Snapshot()
	fmt.Printf("\n✅ Fetch complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Requests:  %v sent, %v failed\n", stats["requests_total"], stats["requests_failed"])
	fmt.Printf("   Documents: %v written, %v null\n", stats["documents_written"], stats["null_documents"])
	fmt.Printf("   Data:      %v bytes downloaded\n", stats["bytes_downloaded"])
	return nil
}

// newProcessor builds a Processor on the configured table sink. The caller
// closes the returned sink.
func newProcessor(ctx context.Context, e *env) (*processing.Processor, storage.TableSink, error) {
	sink, err := storage.NewTableSink(ctx, &e.cfg.Storage, e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage: %w", err)
	}
	return processing.New(e.cfg, sink, e.metrics, e.logger), sink, nil
}

// processCmd creates the "process" subcommand.
func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Flatten the downloaded documents into CSV tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd.Context(), func(ctx context.Context, p *processing.Processor) error {
				return p.Process(ctx)
			})
		},
	}
}

// cleanCmd creates the "clean" subcommand.
func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Merge the CSV tables into the cleaned dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd.Context(), func(ctx context.Context, p *processing.Processor) error {
				return p.Clean(ctx)
			})
		},
	}
}

// tagClassesCmd creates the "tag-classes" subcommand.
func tagClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag-classes [dir]",
		Short: "Rewrite the class column of every talent CSV in dir from its file name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd.Context(), func(ctx context.Context, p *processing.Processor) error {
				dir := p.Paths().TreesCSVDir
				if len(args) == 1 {
					dir = args[0]
				}
				return p.UpdateTalentCSVs(ctx, dir)
			})
		},
	}
}

func withProcessor(parent context.Context, fn func(context.Context, *processing.Processor) error) error {
	ctx, cancel, e, err := setup(parent)
	if err != nil {
		return err
	}
	defer cancel()

	p, sink, err := newProcessor(ctx, e)
	if err != nil {
		return err
	}
	defer sink.Close()
	return fn(ctx, p)
}

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, process and clean in one go",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			start := time.Now()
			if err := runFetch(ctx, e); err != nil {
				return err
			}
			p, sink, err := newProcessor(ctx, e)
			if err != nil {
				return err
			}
			defer sink.Close()
			if err := p.Process(ctx); err != nil {
				return err
			}
			if err := p.Clean(ctx); err != nil {
				return err
			}

			stats := e.metrics.Snapshot()
			fmt.Printf("\n✅ Run complete in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("   Tables:    %v exported, %v rows\n", stats["tables_exported"], stats["rows_exported"])
			fmt.Printf("   Output:    %s (%s)\n", e.cfg.Paths.CleanedDataset, sink.Name())
			return nil
		},
	}
	addFetchFlags(cmd)
	return cmd
}
