// Package forum collects player comments from public forum topic pages.
package forum

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// Rule names the collector zips into comments.
const (
	FieldTopic      = "topic"
	FieldForumName  = "forum_name"
	FieldPlayerName = "player_name"
	FieldContent    = "content"
	FieldLikes      = "likes"
	FieldDate       = "date"
	FieldComment    = "comment"
)

// Comment is one post of a topic page.
type Comment struct {
	PlayerName string
	Content    string
	Likes      string
	Date       string
}

// Page is what a topic page yields.
type Page struct {
	Topic     string
	ForumName string
	Comments  []Comment

	// Next is the absolute URL of the following page, or "".
	Next string
}

// Parser applies XPath rules to topic pages.
type Parser struct {
	rules  []config.ParseRule
	logger *slog.Logger
}

// NewParser creates a Parser for rules.
func NewParser(rules []config.ParseRule, logger *slog.Logger) *Parser {
	return &Parser{
		rules:  rules,
		logger: logger.With("component", "forum_parser"),
	}
}

// Parse extracts the topic title, the forum name, the comments and the
// next page link from a topic page. Comment fields are matched up by
// position: the n-th player name goes with the n-th content, likes and
// date, and the comment count is that of the shortest list.
func (p *Parser) Parse(resp *types.Response) (*Page, error) {
	pageURL := resp.Request.URLString()
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: pageURL, Err: err}
	}
	if len(doc.Nodes) == 0 {
		return nil, &types.ParseError{URL: pageURL, Err: types.ErrEmptyResponse}
	}
	root := doc.Nodes[0]

	page := &Page{
		Topic: strings.TrimSpace(doc.Find("h1 a").First().Text()),
	}

	if href, ok := doc.Find(`a[rel="next"]`).First().Attr("href"); ok {
		page.Next = resolve(pageURL, href)
	}

	values := make(map[string][]string, len(p.rules))
	for _, rule := range p.rules {
		values[rule.Name] = p.extract(root, rule)
	}

	if names := values[FieldForumName]; len(names) > 0 {
		page.ForumName = names[0]
	}

	players := values[FieldPlayerName]
	contents := values[FieldContent]
	likes := values[FieldLikes]
	dates := values[FieldDate]
	n := min(len(players), len(contents), len(likes), len(dates))
	for i := 0; i < n; i++ {
		page.Comments = append(page.Comments, Comment{
			PlayerName: players[i],
			Content:    contents[i],
			Likes:      likes[i],
			Date:       dates[i],
		})
	}
	if n < max(len(players), len(contents), len(likes), len(dates)) {
		p.logger.Debug("comment fields unevenly matched",
			"url", pageURL,
			"players", len(players),
			"contents", len(contents),
			"likes", len(likes),
			"dates", len(dates),
		)
	}

	return page, nil
}

// extract applies a single XPath expression and returns the non-empty
// matched values.
func (p *Parser) extract(root *html.Node, rule config.ParseRule) []string {
	nodes, err := htmlquery.QueryAll(root, rule.Selector)
	if err != nil {
		p.logger.Warn("invalid xpath", "rule", rule.Name, "selector", rule.Selector, "error", err)
		return nil
	}

	var values []string
	for _, node := range nodes {
		var val string

		switch rule.Attribute {
		case "", "text":
			val = strings.TrimSpace(htmlquery.InnerText(node))
		case "html", "innerHTML":
			val = htmlquery.OutputHTML(node, false)
		default:
			val = htmlquery.SelectAttr(node, rule.Attribute)
		}

		if val != "" {
			values = append(values, val)
		}
	}
	return values
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
