package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/fetcher"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/pipeline"
	"github.com/IshaanNene/WoWHarvest/internal/storage"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// UniqueKeys are the fields of the compound unique index comments are
// deduplicated on in the document store.
var UniqueKeys = []string{
	FieldTopic, FieldForumName, FieldComment,
	FieldPlayerName, FieldContent, FieldLikes, FieldDate,
}

// Collector walks topic pages and stores their comments.
type Collector struct {
	fetcher fetcher.Fetcher
	cfg     config.ForumsConfig
	parser  *Parser
	pipe    *pipeline.Pipeline
	store   storage.Storage
	visited *visited
	metrics *observability.Metrics
	logger  *slog.Logger

	lastFetch time.Time
}

// NewCollector creates a Collector. metrics may be nil.
func NewCollector(f fetcher.Fetcher, cfg *config.ForumsConfig, store storage.Storage, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Collector{
		fetcher: f,
		cfg:     *cfg,
		parser:  NewParser(cfg.Rules, logger),
		pipe:    NewPipeline(logger),
		store:   store,
		visited: newVisited(),
		metrics: metrics,
		logger:  logger.With("component", "forum_collector"),
	}
}

// NewPipeline returns the cleaning chain every comment goes through before
// it is stored.
func NewPipeline(logger *slog.Logger) *pipeline.Pipeline {
	p := pipeline.New(logger)
	p.Use(
		&pipeline.TrimMiddleware{},
		&pipeline.ForumNameMiddleware{Field: FieldForumName},
		&pipeline.DefaultValueMiddleware{Defaults: map[string]any{FieldForumName: "Unknown"}},
		pipeline.NewHTMLSanitizeMiddleware(FieldContent),
		pipeline.NewCountMiddleware(FieldLikes),
		pipeline.NewDateNormalizeMiddleware([]string{FieldDate}, time.RFC3339),
		&pipeline.RequiredFieldsMiddleware{Fields: []string{FieldPlayerName, FieldContent}},
		pipeline.NewDedupMiddleware(FieldTopic, FieldPlayerName, FieldContent, FieldDate),
	)
	return p
}

// Run collects every configured topic. A topic that fails to fetch is
// logged and skipped; the joined errors are returned once all topics were
// tried. Storage errors and cancellation stop the run.
func (c *Collector) Run(ctx context.Context) error {
	start := time.Now()
	var errs []error
	for _, topic := range c.cfg.TopicURLs {
		err := c.CollectTopic(ctx, topic)
		if err == nil {
			continue
		}
		var se *types.StorageError
		if ctx.Err() != nil || errors.As(err, &se) {
			return err
		}
		c.logger.Warn("topic skipped", "url", topic, "error", err)
		errs = append(errs, err)
	}

	c.logger.Info("forum collection complete",
		"topics", len(c.cfg.TopicURLs),
		"pages", c.metrics.PagesCrawled.Load(),
		"comments", c.metrics.CommentsExtracted.Load(),
		"dropped", c.metrics.CommentsDropped.Load(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return errors.Join(errs...)
}

// CollectTopic follows a topic from topicURL through its next links, up to
// the configured page limit, and stores the comments of every page.
func (c *Collector) CollectTopic(ctx context.Context, topicURL string) error {
	next := topicURL
	for pages := 0; next != "" && pages < c.cfg.MaxPages; pages++ {
		u, err := url.Parse(next)
		if err != nil {
			return fmt.Errorf("%w: %q", types.ErrInvalidURL, next)
		}
		if !allowedDomain(u.Hostname(), c.cfg.AllowedDomains) {
			c.logger.Warn("domain not allowed", "url", next)
			return nil
		}
		if !c.visited.mark(next) {
			c.logger.Debug("page already visited", "url", next)
			return nil
		}

		page, err := c.fetchPage(ctx, next)
		if err != nil {
			return err
		}
		if page == nil {
			return nil
		}
		if err := c.storePage(ctx, next, page); err != nil {
			return err
		}
		next = page.Next
	}
	return nil
}

func (c *Collector) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := types.NewRequest(pageURL)
	if err != nil {
		return nil, err
	}
	req.Tag = "topic"
	req.Accept = "text/html,application/xhtml+xml"

	c.metrics.RequestsTotal.Add(1)
	resp, err := c.fetcher.Fetch(ctx, req)
	c.lastFetch = time.Now()
	if err != nil {
		c.metrics.RequestsFailed.Add(1)
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.StatusCode > 0 {
			c.metrics.ObserveStatus(fe.StatusCode, 0)
		}
		return nil, err
	}
	c.metrics.ObserveStatus(resp.StatusCode, len(resp.Body))

	if !resp.IsSuccess() {
		c.logger.Warn("topic page unavailable", "url", pageURL, "status", resp.StatusCode)
		return nil, nil
	}

	page, err := c.parser.Parse(resp)
	if err != nil {
		return nil, err
	}
	c.metrics.PagesCrawled.Add(1)
	return page, nil
}

// wait enforces the politeness delay between two page fetches.
func (c *Collector) wait(ctx context.Context) error {
	if c.cfg.PolitenessDelay <= 0 || c.lastFetch.IsZero() {
		return ctx.Err()
	}
	remaining := c.cfg.PolitenessDelay - time.Since(c.lastFetch)
	if remaining <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Collector) storePage(ctx context.Context, pageURL string, page *Page) error {
	items := make([]*types.Item, 0, len(page.Comments))
	for _, cm := range page.Comments {
		c.metrics.CommentsExtracted.Add(1)

		item := types.NewItem(pageURL)
		item.Collector = "forums"
		item.Set(FieldTopic, page.Topic)
		item.Set(FieldForumName, page.ForumName)
		item.Set(FieldPlayerName, cm.PlayerName)
		item.Set(FieldContent, cm.Content)
		item.Set(FieldLikes, cm.Likes)
		item.Set(FieldDate, cm.Date)

		out, err := c.pipe.Process(item)
		if err != nil {
			return err
		}
		if out == nil {
			c.metrics.CommentsDropped.Add(1)
			continue
		}
		out.Set(FieldComment, map[string]any{
			FieldPlayerName: out.GetString(FieldPlayerName),
			FieldContent:    out.GetString(FieldContent),
			FieldLikes:      out.GetString(FieldLikes),
			FieldDate:       out.GetString(FieldDate),
		})
		items = append(items, out)
	}

	c.logger.Info("topic page collected",
		"url", pageURL,
		"topic", page.Topic,
		"comments", len(page.Comments),
		"kept", len(items),
	)
	if len(items) == 0 {
		return nil
	}
	return c.store.Store(ctx, items)
}

// Pages returns how many distinct page URLs were attempted.
func (c *Collector) Pages() int {
	return c.visited.count()
}
