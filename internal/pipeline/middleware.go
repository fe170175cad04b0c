package pipeline

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// HTMLSanitizeMiddleware strips HTML tags from the given string fields, or
// from every string field when none are given.
type HTMLSanitizeMiddleware struct {
	fields  []string
	stripRe *regexp.Regexp
}

func NewHTMLSanitizeMiddleware(fields ...string) *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{
		fields:  fields,
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	fields := m.fields
	if len(fields) == 0 {
		fields = item.Keys()
	}
	for _, key := range fields {
		if s := item.GetString(key); s != "" {
			cleaned := m.stripRe.ReplaceAllString(s, "")
			cleaned = html.UnescapeString(cleaned)
			cleaned = strings.Join(strings.Fields(cleaned), " ")
			item.Set(key, cleaned)
		}
	}
	return item, nil
}

// DateNormalizeMiddleware normalizes date fields to a standard format.
// Values in no known format are left as they are.
type DateNormalizeMiddleware struct {
	fields    []string
	outFormat string
	inFormats []string
}

func NewDateNormalizeMiddleware(fields []string, outFormat string) *DateNormalizeMiddleware {
	if outFormat == "" {
		outFormat = time.RFC3339
	}
	return &DateNormalizeMiddleware{
		fields:    fields,
		outFormat: outFormat,
		inFormats: []string{
			time.RFC3339,
			time.RFC1123,
			time.RFC1123Z,
			"2006-01-02T15:04:05Z0700",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"2006-01-02",
			"Jan 2, 2006 3:04 pm",
			"January 2, 2006",
			"Jan 2, 2006",
		},
	}
}

func (m *DateNormalizeMiddleware) Name() string { return "date_normalize" }

func (m *DateNormalizeMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.fields {
		s := strings.TrimSpace(item.GetString(field))
		if s == "" {
			continue
		}
		for _, format := range m.inFormats {
			t, err := time.Parse(format, s)
			if err == nil {
				item.Set(field, t.UTC().Format(m.outFormat))
				break
			}
		}
	}
	return item, nil
}

// CountMiddleware reduces text such as "12 Likes" or "1,204 likes" to the
// digits of the count. Fields without digits are left untouched.
type CountMiddleware struct {
	fields []string
	numRe  *regexp.Regexp
}

func NewCountMiddleware(fields ...string) *CountMiddleware {
	return &CountMiddleware{
		fields: fields,
		numRe:  regexp.MustCompile(`\d[\d,]*`),
	}
}

func (m *CountMiddleware) Name() string { return "count" }

func (m *CountMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.fields {
		s := item.GetString(field)
		if s == "" {
			continue
		}
		if num := m.numRe.FindString(s); num != "" {
			item.Set(field, strings.ReplaceAll(num, ",", ""))
		}
	}
	return item, nil
}

// ForumNameMiddleware removes the list quoting (['...']) a forum name picks
// up when it is rendered from a one-element list.
type ForumNameMiddleware struct {
	Field string
}

var listQuoteRe = regexp.MustCompile(`\['|'\]`)

func (m *ForumNameMiddleware) Name() string { return "forum_name" }

func (m *ForumNameMiddleware) Process(item *types.Item) (*types.Item, error) {
	field := m.Field
	if field == "" {
		field = "forum_name"
	}
	if s := item.GetString(field); s != "" {
		item.Set(field, listQuoteRe.ReplaceAllString(s, ""))
	}
	return item, nil
}
