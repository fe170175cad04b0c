package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/table"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tb := table.NewTagged(table.Tree, "spell_id", "media.id", "spell_name")
	require.NoError(t, tb.AppendRow(table.Str("100"), table.Null, table.Str("Fireball")))
	require.NoError(t, tb.AppendRow(table.Str("200"), table.Str("7"), table.Str("Frost, Bolt")))
	return tb
}

func tempEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCSVSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "tree.csv")

	sink := NewCSVSink(testLogger)
	require.NoError(t, sink.WriteTable(context.Background(), path, sampleTable(t)))
	assert.Equal(t, []string{"tree.csv"}, tempEntries(t, filepath.Dir(path)))

	back, err := ReadCSVFile(path, table.Tree)
	require.NoError(t, err)
	assert.Equal(t, []string{"spell_id", "media.id", "spell_name"}, back.Names())
	assert.Equal(t, 2, back.Len())
	assert.False(t, back.Get(0, "media.id").Valid)
	assert.Equal(t, "Frost, Bolt", back.Get(1, "spell_name").Value)
}

func TestReadCSVFileMissing(t *testing.T) {
	_, err := ReadCSVFile(filepath.Join(t.TempDir(), "nope.csv"), table.Spell)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestWriteFileAtomicFailureKeepsOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	boom := errors.New("boom")
	err := WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\n", string(data))
	assert.Equal(t, []string{"data.csv"}, tempEntries(t, dir))
}

func TestJSONSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewJSONSink(testLogger)
	require.NoError(t, sink.WriteTable(context.Background(), filepath.Join(dir, "tree.csv"), sampleTable(t)))

	data, err := os.ReadFile(filepath.Join(dir, "tree.json"))
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"spell_id": "100", "media.id": nil, "spell_name": "Fireball"}, rows[0])
	assert.Less(t, strings.Index(string(data), `"spell_id"`), strings.Index(string(data), `"media.id"`))
}

func TestJSONArrayWriter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spells.json")

	w, err := NewJSONArrayWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(json.RawMessage(`{"id":1,"name":{"en_US":"Fireball"}}`)))
	require.NoError(t, w.Write(nil))
	require.NoError(t, w.Write(json.RawMessage(`[1,2]`)))
	assert.Error(t, w.Write(json.RawMessage(`{"id":`)))
	assert.Equal(t, 3, w.Count())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file must not appear before Close")

	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var docs []any
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 3)
	assert.Nil(t, docs[1])
	assert.Equal(t, []string{"spells.json"}, tempEntries(t, dir))
}

func TestJSONArrayWriterEmptyAndAbort(t *testing.T) {
	dir := t.TempDir()

	empty, err := NewJSONArrayWriter(filepath.Join(dir, "empty.json"))
	require.NoError(t, err)
	require.NoError(t, empty.Close())
	data, err := os.ReadFile(filepath.Join(dir, "empty.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	aborted, err := NewJSONArrayWriter(filepath.Join(dir, "aborted.json"))
	require.NoError(t, err)
	require.NoError(t, aborted.Write(json.RawMessage(`{}`)))
	aborted.Abort()
	assert.Equal(t, []string{"empty.json"}, tempEntries(t, dir))
}

func TestJSONLStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comments.jsonl")
	s, err := NewJSONLStorage(path, testLogger)
	require.NoError(t, err)

	a := types.NewItem("https://us.forums.blizzard.com/en/wow/t/1")
	a.Collector = "forums"
	a.Set("player_name", "Thrall")
	b := types.NewItem("https://us.forums.blizzard.com/en/wow/t/1")
	b.Set("player_name", "Jaina")

	require.NoError(t, s.Store(context.Background(), []*types.Item{a, b}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "Thrall", lines[0]["player_name"])
	assert.Equal(t, "forums", lines[0]["_collector"])
	assert.NotContains(t, lines[1], "_collector")
}

type recordingSink struct {
	name    string
	written []string
	err     error
	closed  bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) WriteTable(_ context.Context, name string, _ *table.Table) error {
	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, name)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b", err: errors.New("disk full")}
	c := &recordingSink{name: "c"}

	m := NewMultiSink(a, b, c)
	assert.Equal(t, "a+b+c", m.Name())

	err := m.WriteTable(context.Background(), "x.csv", sampleTable(t))
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, []string{"x.csv"}, a.written)
	assert.Empty(t, c.written)

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}

type recordingStorage struct {
	name   string
	err    error
	items  int
	closed bool
}

func (s *recordingStorage) Name() string { return s.name }

func (s *recordingStorage) Store(_ context.Context, items []*types.Item) error {
	if s.err != nil {
		return &types.StorageError{Backend: s.name, Err: s.err}
	}
	s.items += len(items)
	return nil
}

func (s *recordingStorage) Close() error {
	s.closed = true
	return nil
}

func TestMultiStorage(t *testing.T) {
	jsonl := &recordingStorage{name: "jsonl"}
	mongo := &recordingStorage{name: "mongodb", err: errors.New("no primary")}
	m := NewMultiStorage(testLogger, mongo, jsonl)
	assert.Equal(t, "mongodb+jsonl", m.Name())

	items := []*types.Item{types.NewItem("https://x/t/1"), types.NewItem("https://x/t/1")}
	err := m.Store(context.Background(), items)
	var se *types.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "mongodb", se.Backend)
	assert.Equal(t, 2, jsonl.items, "a failing backend does not stop the others")

	require.NoError(t, m.Close())
	assert.True(t, jsonl.closed && mongo.closed)
}

func TestNewTableSink(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig().Storage

	s, err := NewTableSink(ctx, &cfg, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "csv", s.Name())

	cfg.Type = "json"
	s, err = NewTableSink(ctx, &cfg, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "csv+json", s.Name())

	cfg.Type = "parquet"
	_, err = NewTableSink(ctx, &cfg, testLogger)
	assert.Error(t, err)
}

func TestRowDocument(t *testing.T) {
	doc := RowDocument(sampleTable(t), 0)
	assert.Equal(t, bson.D{
		{Key: "spell_id", Value: "100"},
		{Key: "media_id", Value: nil},
		{Key: "spell_name", Value: "Fireball"},
	}, doc)

	assert.Equal(t, "cleaned_dataset", CollectionName("data/cleaned_dataset.csv"))
	assert.Equal(t, "Mage", CollectionName("Mage"))
}

func TestMongoStorageIntegration(t *testing.T) {
	uri := os.Getenv("WOWHARVEST_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WOWHARVEST_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	db := client.Database("wowharvest_test")
	defer db.Drop(ctx)

	s, err := NewMongoStorage(ctx, client, "wowharvest_test", "comments", []string{"topic", "content"}, nil, testLogger)
	require.NoError(t, err)

	item := func(content string) *types.Item {
		it := types.NewItem("https://example.test/t/1")
		it.Set("topic", "Talents")
		it.Set("content", content)
		return it
	}
	require.NoError(t, s.Store(ctx, []*types.Item{item("a"), item("b"), item("a")}))
	stored, dups := s.Counts()
	assert.Equal(t, 2, stored)
	assert.Equal(t, 1, dups)

	sink := NewMongoTableSink(client, "wowharvest_test", testLogger)
	require.NoError(t, sink.WriteTable(ctx, "data/tree.csv", sampleTable(t)))
	require.NoError(t, sink.WriteTable(ctx, "data/tree.csv", sampleTable(t)))
	n, err := db.Collection("tree").CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
