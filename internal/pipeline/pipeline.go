// Package pipeline cleans collected forum comments before they are stored.
package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.Item) (*types.Item, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw ...Middleware) {
	for _, m := range mw {
		p.middlewares = append(p.middlewares, m)
		p.logger.Debug("middleware added", "name", m.Name(), "position", len(p.middlewares))
	}
}

// Process runs the item through all middleware in order.
func (p *Pipeline) Process(item *types.Item) (*types.Item, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Item:  current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "url", item.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops items missing required fields.
type RequiredFieldsMiddleware struct {
	Fields []string
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, field := range m.Fields {
		val, ok := item.Get(field)
		if !ok || val == nil {
			return nil, nil
		}
		if s, isStr := val.(string); isStr && s == "" {
			return nil, nil
		}
	}
	return item, nil
}

// DedupMiddleware drops items whose key fields repeat an earlier item.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
	keys []string
}

// NewDedupMiddleware dedups on the combination of keys. With no keys the
// item URL is the key.
func NewDedupMiddleware(keys ...string) *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
		keys: keys,
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(item *types.Item) (*types.Item, error) {
	val := item.URL
	if len(m.keys) > 0 {
		parts := make([]string, len(m.keys))
		for i, k := range m.keys {
			parts[i] = item.GetString(k)
		}
		val = strings.Join(parts, "\x00")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[val]; exists {
		return nil, nil
	}
	m.seen[val] = struct{}{}
	return item, nil
}

// DefaultValueMiddleware sets default values for missing or empty fields.
type DefaultValueMiddleware struct {
	Defaults map[string]any
}

func (m *DefaultValueMiddleware) Name() string { return "default_values" }

func (m *DefaultValueMiddleware) Process(item *types.Item) (*types.Item, error) {
	for key, defaultVal := range m.Defaults {
		v, ok := item.Get(key)
		if !ok || v == nil || v == "" {
			item.Set(key, defaultVal)
		}
	}
	return item, nil
}

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(item *types.Item) (*types.Item, error) {
	for _, key := range item.Keys() {
		if s := item.GetString(key); s != "" {
			item.Set(key, strings.TrimSpace(s))
		}
	}
	return item, nil
}
