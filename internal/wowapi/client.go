// Package wowapi is a thin client for the Blizzard Game Data API.
package wowapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/fetcher"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// NewTokenSource returns a client-credentials token source for the API. The
// token is fetched lazily and refreshed by the library when it expires.
func NewTokenSource(ctx context.Context, cfg *config.APIConfig) (oauth2.TokenSource, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("api.client_id and api.client_secret are required (set WOWHARVEST_API_CLIENT_ID and WOWHARVEST_API_CLIENT_SECRET)")
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return cc.TokenSource(ctx), nil
}

// Client issues GET requests against the Game Data API.
type Client struct {
	fetcher   fetcher.Fetcher
	base      *url.URL
	namespace string
	locale    string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates a Client. metrics may be nil.
func NewClient(f fetcher.Fetcher, cfg *config.APIConfig, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api.base_url: %w", err)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Client{
		fetcher:   f,
		base:      base,
		namespace: cfg.Namespace,
		locale:    cfg.Locale,
		metrics:   metrics,
		logger:    logger.With("component", "wowapi"),
	}, nil
}

// Get fetches path (relative to the base URL) with the namespace and the
// extra query parameters. A non-2xx response yields a nil document and no
// error, matching how the harvester records missing entries.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("namespace", c.namespace)
	u.RawQuery = q.Encode()

	req, err := types.NewRequest(u.String())
	if err != nil {
		return nil, err
	}
	req.Tag = path

	c.metrics.RequestsTotal.Add(1)
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		c.metrics.RequestsFailed.Add(1)
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.StatusCode > 0 {
			c.metrics.ObserveStatus(fe.StatusCode, 0)
		}
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	c.metrics.ObserveStatus(resp.StatusCode, len(resp.Body))

	if !resp.IsSuccess() {
		c.logger.Warn("api returned no document", "path", path, "status", resp.StatusCode)
		return nil, nil
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("GET %s: %w", path, types.ErrEmptyResponse)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, &types.MalformedInputError{Source: u.Path, Reason: "response is not valid JSON"}
	}
	return json.RawMessage(resp.Body), nil
}

func (c *Client) localized() url.Values {
	return url.Values{"locale": {c.locale}}
}

// SpellSearch returns one page of the spell search, ordered by id.
func (c *Client) SpellSearch(ctx context.Context, page int) (json.RawMessage, error) {
	return c.Get(ctx, "search/spell", url.Values{
		"orderby": {"id"},
		"_page":   {strconv.Itoa(page)},
	})
}

// Spell returns one spell.
func (c *Client) Spell(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "spell/"+url.PathEscape(id), c.localized())
}

// TalentIndex returns the PvE talent index.
func (c *Client) TalentIndex(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, "talent/index", c.localized())
}

// Talent returns one PvE talent.
func (c *Client) Talent(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "talent/"+url.PathEscape(id), c.localized())
}

// PvPTalentIndex returns the PvP talent index.
func (c *Client) PvPTalentIndex(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, "pvp-talent/index", c.localized())
}

// PvPTalent returns one PvP talent.
func (c *Client) PvPTalent(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "pvp-talent/"+url.PathEscape(id), c.localized())
}

// TalentTreeIndex returns the class and spec talent tree index.
func (c *Client) TalentTreeIndex(ctx context.Context) (json.RawMessage, error) {
	return c.Get(ctx, "talent-tree/index", c.localized())
}

// TalentTree returns the nodes of a class talent tree.
func (c *Client) TalentTree(ctx context.Context, treeID string) (json.RawMessage, error) {
	return c.Get(ctx, "talent-tree/"+url.PathEscape(treeID), c.localized())
}

// SpecTree returns a specialization's talent tree.
func (c *Client) SpecTree(ctx context.Context, treeID, specID string) (json.RawMessage, error) {
	return c.Get(ctx, "talent-tree/"+url.PathEscape(treeID)+"/playable-specialization/"+url.PathEscape(specID), c.localized())
}
