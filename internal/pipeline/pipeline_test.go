package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/WoWHarvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func comment(fields map[string]any) *types.Item {
	item := types.NewItem("https://eu.forums.blizzard.com/en/wow/t/topic/1")
	for k, v := range fields {
		item.Set(k, v)
	}
	return item
}

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Process(*types.Item) (*types.Item, error) {
	return nil, errors.New("boom")
}

func TestPipelineOrder(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{}, &RequiredFieldsMiddleware{Fields: []string{"content"}})
	assert.Equal(t, 2, p.Len())

	out, err := p.Process(comment(map[string]any{"content": "  hello  "}))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "hello", out.GetString("content"))

	out, err = p.Process(comment(map[string]any{"content": "   "}))
	require.NoError(t, err)
	assert.Nil(t, out, "whitespace-only content is trimmed, then dropped")
}

func TestPipelineError(t *testing.T) {
	p := New(testLogger)
	p.Use(&TrimMiddleware{}, failing{})

	_, err := p.Process(comment(nil))
	var perr *types.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "failing", perr.Stage)
	assert.ErrorContains(t, err, "boom")
}

func TestRequiredFields(t *testing.T) {
	m := &RequiredFieldsMiddleware{Fields: []string{"player_name", "content"}}

	out, _ := m.Process(comment(map[string]any{"player_name": "Jaina", "content": "hi"}))
	assert.NotNil(t, out)

	out, _ = m.Process(comment(map[string]any{"player_name": "Jaina"}))
	assert.Nil(t, out)

	out, _ = m.Process(comment(map[string]any{"player_name": nil, "content": "hi"}))
	assert.Nil(t, out)
}

func TestDedupCompoundKey(t *testing.T) {
	m := NewDedupMiddleware("topic", "player_name", "content")

	first := map[string]any{"topic": "Fire", "player_name": "Jaina", "content": "hi"}
	out, _ := m.Process(comment(first))
	assert.NotNil(t, out)

	out, _ = m.Process(comment(first))
	assert.Nil(t, out, "same key fields")

	out, _ = m.Process(comment(map[string]any{"topic": "Fire", "player_name": "Thrall", "content": "hi"}))
	assert.NotNil(t, out, "different player")
}

func TestDedupByURL(t *testing.T) {
	m := NewDedupMiddleware()
	out, _ := m.Process(types.NewItem("https://example.com/a"))
	assert.NotNil(t, out)
	out, _ = m.Process(types.NewItem("https://example.com/a"))
	assert.Nil(t, out)
	out, _ = m.Process(types.NewItem("https://example.com/b"))
	assert.NotNil(t, out)
}

func TestDefaultValue(t *testing.T) {
	m := &DefaultValueMiddleware{Defaults: map[string]any{"forum_name": "Unknown"}}

	out, _ := m.Process(comment(map[string]any{"forum_name": ""}))
	assert.Equal(t, "Unknown", out.GetString("forum_name"))

	out, _ = m.Process(comment(nil))
	assert.Equal(t, "Unknown", out.GetString("forum_name"))

	out, _ = m.Process(comment(map[string]any{"forum_name": "Mage"}))
	assert.Equal(t, "Mage", out.GetString("forum_name"))
}

func TestHTMLSanitize(t *testing.T) {
	m := NewHTMLSanitizeMiddleware("content")
	out, _ := m.Process(comment(map[string]any{
		"content":     "<p>Blink   is <b>great</b> &amp; fast</p>\n<p>Really.</p>",
		"player_name": "<b>Jaina</b>",
	}))
	assert.Equal(t, "Blink is great & fast Really.", out.GetString("content"))
	assert.Equal(t, "<b>Jaina</b>", out.GetString("player_name"), "only listed fields")
}

func TestDateNormalize(t *testing.T) {
	m := NewDateNormalizeMiddleware([]string{"date"}, "")

	tests := []struct {
		in, want string
	}{
		{"2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z"},
		{"2024-01-15T12:00:00+02:00", "2024-01-15T10:00:00Z"},
		{"2024-01-15", "2024-01-15T00:00:00Z"},
		{"Jan 15, 2024", "2024-01-15T00:00:00Z"},
		{"yesterday", "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out, _ := m.Process(comment(map[string]any{"date": tt.in}))
			assert.Equal(t, tt.want, out.GetString("date"))
		})
	}
}

func TestCount(t *testing.T) {
	m := NewCountMiddleware("likes")

	tests := []struct {
		in, want string
	}{
		{"12 Likes", "12"},
		{"1,204 likes", "1204"},
		{"7", "7"},
		{"Like", "Like"},
	}
	for _, tt := range tests {
		out, _ := m.Process(comment(map[string]any{"likes": tt.in}))
		assert.Equal(t, tt.want, out.GetString("likes"), tt.in)
	}
}

func TestForumName(t *testing.T) {
	m := &ForumNameMiddleware{}
	out, _ := m.Process(comment(map[string]any{"forum_name": "['Mage']"}))
	assert.Equal(t, "Mage", out.GetString("forum_name"))

	out, _ = m.Process(comment(map[string]any{"forum_name": "General Discussion"}))
	assert.Equal(t, "General Discussion", out.GetString("forum_name"))
}
