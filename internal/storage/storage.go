package storage

import (
	"context"

	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// Storage is the interface for item backends (forum comments).
type Storage interface {
	// Store persists a batch of items.
	Store(ctx context.Context, items []*types.Item) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// TableSink is the interface for table export backends.
type TableSink interface {
	// WriteTable exports t under name. File sinks treat name as the output
	// path; the MongoDB sink derives a collection name from it.
	WriteTable(ctx context.Context, name string, t *table.Table) error

	// Close releases resources.
	Close() error

	// Name returns the sink identifier.
	Name() string
}
