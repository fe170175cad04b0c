package types

import "time"

// Item is a single collected record, usually one forum comment.
type Item struct {
	// Fields stores the extracted key-value data.
	Fields map[string]any

	// URL is the page the item was extracted from.
	URL string

	// Collector identifies what produced the item (e.g. "forums").
	Collector string

	// Timestamp is when this item was created.
	Timestamp time.Time
}

// NewItem creates a new empty Item from a source URL.
func NewItem(sourceURL string) *Item {
	return &Item{
		Fields:    make(map[string]any),
		URL:       sourceURL,
		Timestamp: time.Now(),
	}
}

// Set sets a field value.
func (i *Item) Set(key string, value any) {
	i.Fields[key] = value
}

// Get retrieves a field value.
func (i *Item) Get(key string) (any, bool) {
	v, ok := i.Fields[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (i *Item) GetString(key string) string {
	v, ok := i.Fields[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Keys returns all field names.
func (i *Item) Keys() []string {
	keys := make([]string, 0, len(i.Fields))
	for k := range i.Fields {
		keys = append(keys, k)
	}
	return keys
}

// Document returns the item as a flat map with its provenance fields, the
// shape every item storage backend persists.
func (i *Item) Document() map[string]any {
	doc := make(map[string]any, len(i.Fields)+3)
	doc["_source_url"] = i.URL
	doc["_timestamp"] = i.Timestamp
	if i.Collector != "" {
		doc["_collector"] = i.Collector
	}
	for k, v := range i.Fields {
		doc[k] = v
	}
	return doc
}
