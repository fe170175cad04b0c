package forum

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/fetcher"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
	"github.com/IshaanNene/WoWHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type post struct {
	player, content, likes, date string
}

func topicPage(title, forum string, posts []post, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if forum != "" {
		fmt.Fprintf(&b, `<div id="topic-title"><div><span>#</span><span><a href="/c/classes"><span>i</span><span><span>%s</span></span></a></span></div></div>`, forum)
	}
	fmt.Fprintf(&b, `<h1><a href="/t/topic/1">%s</a></h1>`, title)
	for _, p := range posts {
		b.WriteString(`<div class="topic-body crawler-post"><div class="crawler-post-meta">`)
		fmt.Fprintf(&b, `<span class="creator" itemprop="author"><a href="/u/x"><span itemprop="name">%s</span></a></span>`, p.player)
		fmt.Fprintf(&b, `<span class="crawler-post-infos"><time itemprop="datePublished" datetime="%s">date</time></span>`, p.date)
		b.WriteString(`</div>`)
		fmt.Fprintf(&b, `<div class="post"><p>%s</p></div>`, p.content)
		fmt.Fprintf(&b, `<span class="post-likes">%s</span>`, p.likes)
		b.WriteString(`</div>`)
	}
	if next != "" {
		fmt.Fprintf(&b, `<div role="navigation"><a rel="next" href="%s">next page</a></div>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

type forumServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newForumServer(t *testing.T) *forumServer {
	t.Helper()
	fs := &forumServer{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/t/blink/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, topicPage("Blink is great", "['Mage']", []post{
				{"Thrall", "Blink <b>rocks</b>", "3 Likes", "2024-01-15T10:00:00Z"},
				{"Jaina", "Agreed &amp; then some", "1,204 Likes", "2024-01-16T12:00:00+02:00"},
			}, ""))
			return
		}
		fmt.Fprint(w, topicPage("Blink is great", "['Mage']", []post{
			{"Thrall", "Blink <b>rocks</b>", "3 Likes", "2024-01-15T10:00:00Z"},
			{"Khadgar", "Use it more", "7 Likes", "2024-01-15T11:00:00Z"},
		}, "/t/blink/1?page=2"))
	})
	mux.HandleFunc("/t/nameless/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, topicPage("No forum", "", []post{
			{"Anduin", "Hello", "2 Likes", "2024-02-01T00:00:00Z"},
		}, ""))
	})
	mux.HandleFunc("/t/gone/3", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/t/broken/4", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.RequestURI()]++
		fs.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *forumServer) count(uri string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[uri]
}

func (fs *forumServer) total() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for _, c := range fs.hits {
		n += c
	}
	return n
}

type recordingStorage struct {
	mu    sync.Mutex
	items []*types.Item
	err   error
}

func (s *recordingStorage) Store(_ context.Context, items []*types.Item) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	return nil
}

func (s *recordingStorage) Close() error { return nil }
func (s *recordingStorage) Name() string { return "recording" }

func newCollector(t *testing.T, fs *forumServer, store *recordingStorage, m *observability.Metrics, mutate func(*config.ForumsConfig)) *Collector {
	t.Helper()
	cfg := config.DefaultConfig().Forums
	cfg.AllowedDomains = []string{"127.0.0.1"}
	cfg.PolitenessDelay = 0
	if mutate != nil {
		mutate(&cfg)
	}
	f, err := fetcher.NewHTTPFetcher(fetcher.Options{Timeout: 5 * time.Second, UserAgent: "wowharvest-test"}, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return NewCollector(f, &cfg, store, m, testLogger)
}

func TestCollectTopicFollowsPagination(t *testing.T) {
	fs := newForumServer(t)
	store := &recordingStorage{}
	m := observability.NewMetrics(testLogger)
	c := newCollector(t, fs, store, m, nil)

	require.NoError(t, c.CollectTopic(context.Background(), fs.URL+"/t/blink/1"))

	assert.Equal(t, 1, fs.count("/t/blink/1"))
	assert.Equal(t, 1, fs.count("/t/blink/1?page=2"))
	require.Len(t, store.items, 3, "the repeated Thrall post is dropped")

	first := store.items[0]
	assert.Equal(t, "Blink is great", first.GetString(FieldTopic))
	assert.Equal(t, "Mage", first.GetString(FieldForumName))
	assert.Equal(t, "Thrall", first.GetString(FieldPlayerName))
	assert.Equal(t, "Blink rocks", first.GetString(FieldContent))
	assert.Equal(t, "3", first.GetString(FieldLikes))
	assert.Equal(t, "2024-01-15T10:00:00Z", first.GetString(FieldDate))
	assert.Equal(t, "forums", first.Collector)
	assert.Equal(t, map[string]any{
		FieldPlayerName: "Thrall",
		FieldContent:    "Blink rocks",
		FieldLikes:      "3",
		FieldDate:       "2024-01-15T10:00:00Z",
	}, first.Fields[FieldComment])

	last := store.items[2]
	assert.Equal(t, "Jaina", last.GetString(FieldPlayerName))
	assert.Equal(t, "Agreed & then some", last.GetString(FieldContent))
	assert.Equal(t, "1204", last.GetString(FieldLikes))
	assert.Equal(t, "2024-01-16T10:00:00Z", last.GetString(FieldDate))
	assert.Equal(t, fs.URL+"/t/blink/1?page=2", last.URL)

	assert.Equal(t, int64(2), m.PagesCrawled.Load())
	assert.Equal(t, int64(4), m.CommentsExtracted.Load())
	assert.Equal(t, int64(1), m.CommentsDropped.Load())
	assert.Equal(t, int64(2), m.Responses2xx.Load())
}

func TestMaxPages(t *testing.T) {
	fs := newForumServer(t)
	store := &recordingStorage{}
	c := newCollector(t, fs, store, nil, func(cfg *config.ForumsConfig) { cfg.MaxPages = 1 })

	require.NoError(t, c.CollectTopic(context.Background(), fs.URL+"/t/blink/1"))
	assert.Equal(t, 0, fs.count("/t/blink/1?page=2"))
	assert.Len(t, store.items, 2)
}

func TestDomainNotAllowed(t *testing.T) {
	fs := newForumServer(t)
	store := &recordingStorage{}
	c := newCollector(t, fs, store, nil, func(cfg *config.ForumsConfig) {
		cfg.AllowedDomains = []string{"us.forums.blizzard.com"}
	})

	require.NoError(t, c.CollectTopic(context.Background(), fs.URL+"/t/blink/1"))
	assert.Zero(t, fs.total())
	assert.Empty(t, store.items)
}

func TestRunSkipsFailedTopics(t *testing.T) {
	fs := newForumServer(t)
	store := &recordingStorage{}
	m := observability.NewMetrics(testLogger)
	c := newCollector(t, fs, store, m, func(cfg *config.ForumsConfig) {
		cfg.TopicURLs = []string{
			fs.URL + "/t/broken/4",
			fs.URL + "/t/gone/3",
			fs.URL + "/t/nameless/2",
			fs.URL + "/t/nameless/2#reply",
		}
	})

	err := c.Run(context.Background())
	require.Error(t, err)
	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)

	assert.Equal(t, 1, fs.count("/t/nameless/2"), "the fragment spelling is the same page")
	require.Len(t, store.items, 1)
	assert.Equal(t, "Unknown", store.items[0].GetString(FieldForumName))
	assert.Equal(t, 3, c.Pages())
	assert.Equal(t, int64(1), m.RequestsFailed.Load())
	assert.Equal(t, int64(1), m.Responses4xx.Load())
}

func TestRunStopsOnStorageError(t *testing.T) {
	fs := newForumServer(t)
	store := &recordingStorage{err: &types.StorageError{Backend: "recording", Err: assert.AnError}}
	c := newCollector(t, fs, store, nil, func(cfg *config.ForumsConfig) {
		cfg.TopicURLs = []string{fs.URL + "/t/nameless/2", fs.URL + "/t/blink/1"}
	})

	err := c.Run(context.Background())
	var se *types.StorageError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, fs.count("/t/blink/1"))
}

func TestWaitHonorsCancellation(t *testing.T) {
	c := &Collector{cfg: config.ForumsConfig{PolitenessDelay: time.Hour}, lastFetch: time.Now()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.wait(ctx), context.Canceled)

	c.lastFetch = time.Time{}
	assert.ErrorIs(t, c.wait(ctx), context.Canceled)
	assert.NoError(t, c.wait(context.Background()))
}

func response(t *testing.T, body, pageURL string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(pageURL)
	require.NoError(t, err)
	return &types.Response{StatusCode: http.StatusOK, Body: []byte(body), Request: req}
}

func TestParseZipsShortestList(t *testing.T) {
	body := topicPage("Title", "['Mage']", []post{
		{"Jaina", "one", "1 Likes", "2024-01-01T00:00:00Z"},
		{"Thrall", "two", "2 Likes", "2024-01-02T00:00:00Z"},
	}, "")
	body = strings.Replace(body, `<span class="post-likes">2 Likes</span>`, "", 1)

	page, err := NewParser(config.DefaultForumRules(), testLogger).Parse(response(t, body, "https://us.forums.blizzard.com/en/wow/t/x/1"))
	require.NoError(t, err)
	assert.Equal(t, "Title", page.Topic)
	assert.Equal(t, "['Mage']", page.ForumName)
	assert.Empty(t, page.Next)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, Comment{PlayerName: "Jaina", Content: "one", Likes: "1 Likes", Date: "2024-01-01T00:00:00Z"}, page.Comments[0])
}

func TestParseResolvesNext(t *testing.T) {
	body := topicPage("Title", "", nil, "/en/wow/t/x/1?page=3")
	page, err := NewParser(config.DefaultForumRules(), testLogger).Parse(response(t, body, "https://us.forums.blizzard.com/en/wow/t/x/1?page=2"))
	require.NoError(t, err)
	assert.Equal(t, "https://us.forums.blizzard.com/en/wow/t/x/1?page=3", page.Next)
	assert.Empty(t, page.ForumName)
	assert.Empty(t, page.Comments)
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HTTPS://US.Forums.Blizzard.com:443/en/wow/t/x/1/", "https://us.forums.blizzard.com/en/wow/t/x/1"},
		{"https://h/t/1?b=2&a=1#post_3", "https://h/t/1?a=1&b=2"},
		{"http://h:80", "http://h/"},
		{"http://h:8080/x", "http://h:8080/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalizeURL(tt.in), tt.in)
	}
}

func TestAllowedDomain(t *testing.T) {
	domains := []string{"forums.blizzard.com"}
	assert.True(t, allowedDomain("us.forums.blizzard.com", domains))
	assert.True(t, allowedDomain("FORUMS.blizzard.com", domains))
	assert.False(t, allowedDomain("evilforums.blizzard.com.example", domains))
	assert.False(t, allowedDomain("notforums.blizzard.com", domains))
	assert.True(t, allowedDomain("anything", nil))
}
