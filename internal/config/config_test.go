package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "social-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://bsky.social", cfg.Bluesky.Service)
	assert.Equal(t, 10, cfg.Sync.MaxPosts)
	assert.Equal(t, "text-placeholder", cfg.Sync.MediaStrategy)
	assert.Equal(t, time.Second, cfg.Sync.ItemDelay)
	assert.Equal(t, "#no-sync", cfg.Sync.OptOutTag)
	assert.Equal(t, "sync_state.json", cfg.StateFile)
	assert.Equal(t, "social_sync.log", cfg.Log.File)
	assert.False(t, cfg.Sync.DryRun)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
bluesky:
  handle: me.bsky.social
  password: app-pass
mastodon:
  base_url: https://mastodon.example/
  access_token: tok
sync:
  max_posts: 20
  item_delay: 2s
  media_strategy: skip-post
log:
  format: json
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "me.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, "https://mastodon.example", cfg.Mastodon.BaseURL)
	assert.Equal(t, 20, cfg.Sync.MaxPosts)
	assert.Equal(t, 2*time.Second, cfg.Sync.ItemDelay)
	assert.Equal(t, "skip-post", cfg.Sync.MediaStrategy)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.RequireCredentials())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("BLUESKY_HANDLE", "legacy.bsky.social")
	t.Setenv("BLUESKY_PASSWORD", "pw")
	t.Setenv("MASTODON_API_BASE_URL", "https://m.example")
	t.Setenv("MASTODON_ACCESS_TOKEN", "tok")
	t.Setenv("MAX_POSTS_PER_SYNC", "25")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("SYNC_START_DATE", "2025-01-15")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "legacy.bsky.social", cfg.Bluesky.Handle)
	assert.Equal(t, 25, cfg.Sync.MaxPosts)
	assert.True(t, cfg.Sync.DryRun)
	assert.Equal(t, "2025-01-15", cfg.Sync.StartDate)
	assert.NoError(t, cfg.RequireCredentials())
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("MAX_POSTS_PER_SYNC", "25")
	t.Setenv("SOCIAL_SYNC_SYNC_MAX_POSTS", "30")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sync.MaxPosts)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "sync:\n  max_posts: 20\n")
	t.Setenv("SOCIAL_SYNC_SYNC_MAX_POSTS", "30")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sync.MaxPosts, "env overrides file")

	flags := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	flags.Int("max-posts", 10, "")
	flags.Bool("dry-run", false, "")
	require.NoError(t, flags.Parse([]string{"--max-posts=5"}))

	cfg, err = Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Sync.MaxPosts, "flag overrides env")
	assert.False(t, cfg.Sync.DryRun, "unchanged flag does not override")
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"max posts zero", map[string]string{"MAX_POSTS_PER_SYNC": "0"}},
		{"max posts too large", map[string]string{"MAX_POSTS_PER_SYNC": "101"}},
		{"bad media strategy", map[string]string{"SOCIAL_SYNC_SYNC_MEDIA_STRATEGY": "drop"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad mastodon url", map[string]string{"MASTODON_API_BASE_URL": "mastodon.example"}},
		{"bad opt-out tag", map[string]string{"SOCIAL_SYNC_SYNC_OPT_OUT_TAG": "no-sync"}},
		{"bad start date", map[string]string{"SYNC_START_DATE": "15/01/2025"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}
}

func TestRequireCredentials_ListsAllMissing(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	err = cfg.RequireCredentials()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 4)
}

func TestParseStartDate(t *testing.T) {
	got, err := ParseStartDate("2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseStartDate("2025-01-15T10:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC), got)

	_, err = ParseStartDate("yesterday")
	assert.Error(t, err)
}

func TestSince(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cfg := &Config{}
	assert.Equal(t, now.Add(-DefaultLookback), cfg.Since(now))

	cfg.Sync.StartDate = "2025-03-01"
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), cfg.Since(now))
}

func TestYAML_RedactsSecrets(t *testing.T) {
	t.Setenv("BLUESKY_PASSWORD", "hunter2")
	t.Setenv("MASTODON_ACCESS_TOKEN", "secret-token")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	s := string(out)
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "secret-token")
	assert.Contains(t, s, "********")
	assert.Contains(t, s, "item_delay: 1s")
	assert.Equal(t, "hunter2", cfg.Bluesky.Password, "original untouched")
}
