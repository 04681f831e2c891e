package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/testutil"
)

const me = "did:plc:me"

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	dir   string
	state string
	src   *testutil.FakeSource
	dst   *testutil.FakeDestination
}

func newEnv(t *testing.T, items ...post.SourceItem) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:   dir,
		state: filepath.Join(dir, "sync_state.json"),
		src:   &testutil.FakeSource{Items: items},
		dst:   &testutil.FakeDestination{},
	}
	t.Setenv("BLUESKY_HANDLE", "me.test")
	t.Setenv("BLUESKY_PASSWORD", "app-pass")
	t.Setenv("MASTODON_API_BASE_URL", "https://mastodon.example")
	t.Setenv("MASTODON_ACCESS_TOKEN", "tok")
	t.Setenv("STATE_FILE", e.state)
	t.Setenv("SOCIAL_SYNC_JOURNAL_FILE", filepath.Join(dir, "runs.db"))
	t.Setenv("SOCIAL_SYNC_LOG_FILE", filepath.Join(dir, "sync.log"))
	return e
}

func (e *env) deps() Deps {
	return Deps{
		NewSource:      func(*config.Config, *slog.Logger) engine.Source { return e.src },
		NewDestination: func(*config.Config, *slog.Logger) engine.Destination { return e.dst },
		Clock:          testutil.NewFakeClock(now),
		RunIDs:         testutil.NewFixedRunIDGenerator("run-1"),
	}
}

func (e *env) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommandWith(e.deps())
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func srcItem(rkey, text string) post.SourceItem {
	return post.SourceItem{
		ID:        "at://" + me + "/app.bsky.feed.post/" + rkey,
		Text:      text,
		AuthorID:  me,
		CreatedAt: now.Add(-time.Hour),
	}
}

func TestSync_PublishesAndWritesState(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))

	out, err := e.execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Sync completed (run run-1)")
	assert.Contains(t, out, "Synced:   1")

	require.Len(t, e.dst.Published, 1)
	assert.Equal(t, "hello\n\n(via Bluesky 🦋)", e.dst.Published[0].Text)

	l, err := ledger.NewFileStore(e.state).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, l.IsSynced(srcItem("a", "").ID))
}

func TestSync_DisableSourcePlatformFlag(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))

	_, err := e.execute(t, "sync", "--disable-source-platform")
	require.NoError(t, err)
	require.Len(t, e.dst.Published, 1)
	assert.Equal(t, "hello", e.dst.Published[0].Text)
}

func TestSync_StateFileFlagOverridesEnv(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))
	custom := filepath.Join(e.dir, "custom_state.json")

	_, err := e.execute(t, "sync", "--state-file", custom, "--log-level", "debug")
	require.NoError(t, err)

	l, err := ledger.NewFileStore(custom).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, l.IsSynced(srcItem("a", "").ID))

	_, statErr := os.Stat(e.state)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSync_DryRunLeavesStateUntouched(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))

	out, err := e.execute(t, "sync", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Planned:  1")
	assert.Contains(t, out, "DRY RUN")
	assert.Contains(t, out, "  | hello")
	assert.Empty(t, e.dst.Published)

	_, statErr := os.Stat(e.state)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSync_JSONOutput(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))

	out, err := e.execute(t, "sync", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   engine.Report `json:"data"`
		RunID  string        `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, 1, resp.Data.Synced)
}

func TestSync_FailedItemsExitOne(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))
	e.dst.PublishErrors = []error{errors.New("status 500")}

	_, err := e.execute(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSync_PersistenceFailureExitThree(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))
	// A regular file where the state directory should be makes the state unreadable.
	blocker := filepath.Join(e.dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	t.Setenv("STATE_FILE", filepath.Join(blocker, "state.json"))

	out, err := e.execute(t, "sync", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitAborted, GetExitCode(err))
	assert.Empty(t, e.dst.Attempts, "nothing is published without readable state")

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "PERSISTENCE", resp.Error.Code)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestSync_MissingCredentials(t *testing.T) {
	e := newEnv(t)
	t.Setenv("MASTODON_ACCESS_TOKEN", "")
	t.Setenv("BLUESKY_PASSWORD", "")

	_, err := e.execute(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "mastodon.access_token")
}

func TestSync_LoginFailureExitTwo(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"))
	e.dst.AuthErr = errors.New("401 invalid token")

	_, err := e.execute(t, "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_InvalidMaxPosts(t *testing.T) {
	e := newEnv(t)

	_, err := e.execute(t, "sync", "--max-posts", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatus_AfterSync(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"), srcItem("b", "quiet #no-sync"))

	_, err := e.execute(t, "sync")
	require.NoError(t, err)

	out, err := e.execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced posts: 1")
	assert.Contains(t, out, "Skipped:      1 (explicit-opt-out: 1)")
	assert.Contains(t, out, "Last sync:    2025-03-01T12:00:00Z")
	assert.Contains(t, out, "run-1")

	out, err = e.execute(t, "status", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data StatusInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.SyncedPosts)
	require.Len(t, resp.Data.RecentRuns, 1)
	assert.Equal(t, "run-1", resp.Data.RecentRuns[0].ID)
}

func TestStatus_RunItems(t *testing.T) {
	e := newEnv(t, srcItem("a", "hello"), srcItem("b", "quiet #no-sync"))

	_, err := e.execute(t, "sync")
	require.NoError(t, err)

	out, err := e.execute(t, "status", "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-1:")
	assert.Contains(t, out, "synced   at://did:plc:me/app.bsky.feed.post/a -> d1")
	assert.Contains(t, out, "skipped  at://did:plc:me/app.bsky.feed.post/b (explicit-opt-out)")

	_, err = e.execute(t, "status", "--run", "run-404")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestStatus_NoStateYet(t *testing.T) {
	e := newEnv(t)
	t.Setenv("MASTODON_ACCESS_TOKEN", "")

	out, err := e.execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Last sync:    Never")
	assert.Contains(t, out, "Synced posts: 0")
	assert.NotContains(t, out, "Recent runs")
}

func TestStatus_CorruptStateExitThree(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.state, []byte("{not json"), 0o600))

	_, err := e.execute(t, "status")
	require.Error(t, err)
	assert.Equal(t, ExitAborted, GetExitCode(err))
}

func TestConfigShow_Redacts(t *testing.T) {
	e := newEnv(t)

	out, err := e.execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "handle: me.test")
	assert.NotContains(t, out, "app-pass")
	assert.NotContains(t, out, ": tok")
}

func TestTestCommand(t *testing.T) {
	e := newEnv(t)
	e.dst.Limit = 1000

	out, err := e.execute(t, "test")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ bluesky: authenticated")
	assert.Contains(t, out, "✓ mastodon: authenticated (limit 1000 characters)")

	e.src.AuthErr = errors.New("bad password")
	out, err = e.execute(t, "test")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bluesky: bad password")
}
