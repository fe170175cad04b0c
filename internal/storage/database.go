package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

// ConnectMongo connects to uri and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	return client, nil
}

// MongoStorage writes items to a MongoDB collection. When unique keys are
// configured, a compound unique index over them is created and items that
// collide with an existing document are skipped.
type MongoStorage struct {
	collection *mongo.Collection
	uniqueKeys []string
	metrics    *observability.Metrics
	mu         sync.Mutex
	stored     int
	duplicates int
	logger     *slog.Logger
}

// NewMongoStorage creates a MongoDB item storage on an existing client.
// metrics may be nil.
func NewMongoStorage(ctx context.Context, client *mongo.Client, database, collection string, uniqueKeys []string, metrics *observability.Metrics, logger *slog.Logger) (*MongoStorage, error) {
	s := &MongoStorage{
		collection: client.Database(database).Collection(collection),
		uniqueKeys: uniqueKeys,
		metrics:    metrics,
		logger:     logger.With("component", "mongo_storage", "collection", collection),
	}
	if len(uniqueKeys) > 0 {
		keys := bson.D{}
		for _, k := range uniqueKeys {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
		_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create unique index: %w", err)}
		}
	}
	return s, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Store(ctx context.Context, items []*types.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		_, err := s.collection.InsertOne(ctx, item.Document())
		switch {
		case err == nil:
			s.stored++
			if s.metrics != nil {
				s.metrics.CommentsStored.Add(1)
			}
		case mongo.IsDuplicateKeyError(err):
			s.duplicates++
			if s.metrics != nil {
				s.metrics.CommentsDuplicate.Add(1)
			}
			s.logger.Debug("duplicate item skipped", "url", item.URL)
		default:
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert: %w", err)}
		}
	}
	return nil
}

// Counts returns how many items were inserted and how many were skipped as
// duplicates.
func (s *MongoStorage) Counts() (stored, duplicates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, s.duplicates
}

func (s *MongoStorage) Close() error {
	stored, dups := s.Counts()
	s.logger.Info("mongodb storage closing", "stored", stored, "duplicates", dups)
	return nil
}

// MongoTableSink replaces a collection with the rows of each table.
type MongoTableSink struct {
	client   *mongo.Client
	database *mongo.Database
	owned    bool
	logger   *slog.Logger
}

// NewMongoTableSink creates a table sink on an existing client.
func NewMongoTableSink(client *mongo.Client, database string, logger *slog.Logger) *MongoTableSink {
	return &MongoTableSink{
		client:   client,
		database: client.Database(database),
		logger:   logger.With("component", "mongo_sink", "database", database),
	}
}

func (s *MongoTableSink) Name() string { return "mongodb" }

// CollectionName maps an output path to a collection name: the base file
// name without its extension.
func CollectionName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FieldName maps a column name to a MongoDB field name. Dots would otherwise
// be read as paths into embedded documents.
func FieldName(column string) string {
	return strings.ReplaceAll(column, ".", "_")
}

// RowDocument converts row i of t into an ordered document. Null cells are
// stored as null.
func RowDocument(t *table.Table, i int) bson.D {
	names := t.Names()
	doc := make(bson.D, 0, len(names))
	for _, n := range names {
		c := t.Get(i, n)
		var v any
		if c.Valid {
			v = c.Value
		}
		doc = append(doc, bson.E{Key: FieldName(n), Value: v})
	}
	return doc
}

func (s *MongoTableSink) WriteTable(ctx context.Context, name string, t *table.Table) error {
	coll := s.database.Collection(CollectionName(name))
	if err := coll.Drop(ctx); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("drop %s: %w", coll.Name(), err)}
	}
	if t.Len() == 0 {
		return nil
	}

	docs := make([]any, t.Len())
	for i := range docs {
		docs[i] = RowDocument(t, i)
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert into %s: %w", coll.Name(), err)}
	}
	s.logger.Info("collection written", "collection", coll.Name(), "rows", t.Len())
	return nil
}

func (s *MongoTableSink) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Fan-out ---

// MultiStorage writes items to every backend. A failing backend does not
// stop the others; the errors are joined.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(logger *slog.Logger, backends ...Storage) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (m *MultiStorage) Name() string {
	names := make([]string, len(m.backends))
	for i, b := range m.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

func (m *MultiStorage) Store(ctx context.Context, items []*types.Item) error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Store(ctx, items); err != nil {
			m.logger.Error("backend store failed", "backend", b.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiStorage) Close() error {
	var errs []error
	for _, b := range m.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiSink writes every table to each sink in order.
type MultiSink struct {
	sinks []TableSink
}

// NewMultiSink creates a sink that fans out to sinks.
func NewMultiSink(sinks ...TableSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *MultiSink) WriteTable(ctx context.Context, name string, t *table.Table) error {
	for _, s := range m.sinks {
		if err := s.WriteTable(ctx, name, t); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewTableSink builds the export sink for cfg. CSV is always written, since
// later stages read it back; "json" and "mongodb" add a second copy.
func NewTableSink(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (TableSink, error) {
	csv := NewCSVSink(logger)
	switch cfg.Type {
	case "", "csv":
		return csv, nil
	case "json":
		return NewMultiSink(csv, NewJSONSink(logger)), nil
	case "mongodb":
		client, err := ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, &types.StorageError{Backend: "mongodb", Err: err}
		}
		mongoSink := NewMongoTableSink(client, cfg.MongoDatabase, logger)
		mongoSink.owned = true
		return NewMultiSink(csv, mongoSink), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
