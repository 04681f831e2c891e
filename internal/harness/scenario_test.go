package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hossain-khan/social-sync/internal/post"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
options:
  runs: 2
  media_strategy: partial
items:
  - id: a
    text: "Hello"
    minutes_ago: 15
    images:
      - { ref: img1, alt: "A cat" }
destination:
  publish: [transient, ok]
assertions:
  - { type: synced, source: a }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, 2, scenario.Options.Runs)
	assert.Equal(t, "partial", scenario.Options.MediaStrategy)
	require.Len(t, scenario.Items, 1)
	assert.Equal(t, []ImageSpec{{Ref: "img1", Alt: "A cat"}}, scenario.Items[0].Images)
	assert.Equal(t, []string{"transient", "ok"}, scenario.Destination.Publish)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
itemz:
  - { id: a, text: "x" }
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "items: []", "name is required"},
		{"bad strategy", "name: x\noptions: { media_strategy: maybe }", "unknown strategy"},
		{"duplicate id", "name: x\nitems: [{ id: a }, { id: a }]", `duplicate id "a"`},
		{"item without id", "name: x\nitems: [{ text: hi }]", "id is required"},
		{"bad script", "name: x\ndestination: { publish: [explode] }", `unknown script entry "explode"`},
		{"bad assertion", "name: x\nassertions: [{ type: vibes }]", `unknown assertion type "vibes"`},
		{"outcome without source", "name: x\nassertions: [{ type: outcome, outcome: synced }]", "outcome requires source"},
		{"filtered without reason", "name: x\nfiltered: [{ id: r1 }]", "id and reason are required"},
		{"too many images", "name: x\nitems: [{ id: a, images: [{ref: r1}, {ref: r2}, {ref: r3}, {ref: r4}, {ref: r5}] }]", "at most 4 images"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExpandID(t *testing.T) {
	assert.Equal(t, "at://did:plc:me/app.bsky.feed.post/a", ExpandID("a", ""))
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/p1", ExpandID("p1", "bob"))
	assert.Equal(t, "at://did:web:x.dev/app.bsky.feed.post/p1", ExpandID("p1", "did:web:x.dev"))
	assert.Equal(t, "at://did:plc:zed/app.bsky.feed.post/q", ExpandID("at://did:plc:zed/app.bsky.feed.post/q", "bob"))

	assert.Equal(t, "a", ShortID(ExpandID("a", "")))
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/p1", ShortID(ExpandID("p1", "bob")))
}

func TestItemSpec_ToSourceItem(t *testing.T) {
	spec := ItemSpec{
		ID:           "c",
		Text:         "reply",
		MinutesAgo:   10,
		Parent:       "b",
		ParentAuthor: "bob",
		Root:         "a",
		Images:       []ImageSpec{{Ref: "img1", Alt: "alt"}},
		Quote:        &QuoteSpec{ID: "q", Author: "carol", Handle: "carol.test", Text: "quoted"},
	}

	item := spec.toSourceItem(Start)

	assert.Equal(t, "at://did:plc:me/app.bsky.feed.post/c", item.ID)
	assert.Equal(t, Start.Add(-10*time.Minute), item.CreatedAt)
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/b", item.ParentID)
	assert.Equal(t, "at://did:plc:bob/app.bsky.feed.post/a", item.RootID)

	qm, ok := item.Embed.(post.QuoteWithMedia)
	require.True(t, ok, "quote plus images is a QuoteWithMedia")
	assert.Equal(t, "at://did:plc:carol/app.bsky.feed.post/q", qm.Quote.ID)
	assert.Equal(t, "carol.test", qm.Quote.AuthorHandle)
	require.Len(t, qm.Media.Images, 1)
	assert.Equal(t, "img1", qm.Media.Images[0].Ref)
}
