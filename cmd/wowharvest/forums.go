package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/fetcher"
	"github.com/IshaanNene/WoWHarvest/internal/forum"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
)

var (
	forumsOutput   string
	forumsMaxPages int
	forumsDelay    string
)

// forumsCmd creates the "forums" subcommand.
func forumsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forums [topic-url...]",
		Short: "Collect player comments from forum topics",
		Long: `Fetch each topic (the arguments, or forums.topic_urls from the config),
follow its next-page links and store one document per comment.

Comments are always appended to a JSONL file. With storage.type mongodb
they also go to the forums collection, where a unique compound index skips
comments that were stored before.`,
		RunE: runForums,
	}

	cmd.Flags().StringVarP(&forumsOutput, "output", "o", "data/forums.jsonl", "JSONL output file")
	cmd.Flags().IntVar(&forumsMaxPages, "max-pages", 0, "pages to follow per topic (0 = use config)")
	cmd.Flags().StringVar(&forumsDelay, "delay", "", "politeness delay between page fetches")

	return cmd
}

func runForums(cmd *cobra.Command, args []string) error {
	ctx, cancel, e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer cancel()

	fc := e.cfg.Forums
	if len(args) > 0 {
		fc.TopicURLs = args
	}
	if forumsMaxPages > 0 {
		fc.MaxPages = forumsMaxPages
	}
	if forumsDelay != "" {
		d, err := time.ParseDuration(forumsDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay: %w", err)
		}
		fc.PolitenessDelay = d
	}
	if len(fc.TopicURLs) == 0 {
		return fmt.Errorf("no topic URLs: pass them as arguments or set forums.topic_urls")
	}
	for _, u := range fc.TopicURLs {
		if err := config.ValidateURL(u); err != nil {
			return fmt.Errorf("invalid topic URL %q: %w", u, err)
		}
	}

	var store storage.Storage
	store, err = storage.NewJSONLStorage(forumsOutput, e.logger)
	if err != nil {
		return err
	}
	if e.cfg.Storage.Type == "mongodb" {
		client, err := storage.ConnectMongo(ctx, e.cfg.Storage.MongoURI)
		if err != nil {
			_ = store.Close()
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		mongo, err := storage.NewMongoStorage(ctx, client, e.cfg.Storage.MongoDatabase, fc.Collection, forum.UniqueKeys, e.metrics, e.logger)
		if err != nil {
			_ = store.Close()
			return err
		}
		store = storage.NewMultiStorage(e.logger, store, mongo)
	}
	defer store.Close()

	f, err := fetcher.NewHTTPFetcher(fetcher.Options{
		Timeout:     e.cfg.API.RequestTimeout,
		UserAgent:   e.cfg.API.UserAgent,
		MaxBodySize: e.cfg.API.MaxBodySize,
	}, e.logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	start := time.Now()
	runErr := forum.NewCollector(f, &fc, store, e.metrics, e.logger).Run(ctx)

	stats := e.metrics.Snapshot()
	fmt.Printf("\n✅ Forum collection finished in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Pages:     %v crawled\n", stats["forum_pages"])
	fmt.Printf("   Comments:  %v extracted, %v dropped\n", stats["comments_extracted"], stats["comments_dropped"])
	fmt.Printf("   Output:    %s\n", forumsOutput)
	if e.cfg.Storage.Type == "mongodb" {
		fmt.Printf("   Stored:    %v new, %v duplicates\n", stats["comments_stored"], stats["comments_duplicate"])
	}
	return runErr
}
