package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hossain-khan/social-sync/internal/engine"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func report(id string, started time.Time) *engine.Report {
	return &engine.Report{
		RunID:         id,
		StartedAt:     started,
		FinishedAt:    started.Add(3 * time.Second),
		Fetched:       4,
		Processed:     3,
		Synced:        2,
		Failed:        1,
		Orphaned:      1,
		Skipped:       map[string]int{"explicit-opt-out": 1},
		Filtered:      map[string]int{"repost": 1},
		PersistenceOK: true,
		Items: []engine.ItemResult{
			{SourceID: "at://a", Outcome: engine.OutcomeSynced, DestinationID: "d1"},
			{SourceID: "at://b", Outcome: engine.OutcomeSynced, DestinationID: "d2", InReplyToID: "d1"},
			{SourceID: "at://c", Outcome: engine.OutcomeFailed, Error: "422"},
		},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTest(t)

	assert.NoError(t, j.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, j.verifyPragma("user_version", "1"))
}

func TestWriteRun_RoundTrip(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.WriteRun(ctx, report("run-1", started)))

	runs, err := j.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, started, got.StartedAt)
	assert.Equal(t, started.Add(3*time.Second), got.FinishedAt)
	assert.Equal(t, 2, got.Synced)
	assert.Equal(t, 1, got.Failed)
	assert.True(t, got.PersistenceOK)
	assert.False(t, got.DryRun)
	assert.Equal(t, map[string]int{"explicit-opt-out": 1}, got.Skipped)
	assert.Equal(t, map[string]int{"repost": 1}, got.Filtered)

	items, err := j.RunItems(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "at://b", items[1].SourceID)
	assert.Equal(t, "d1", items[1].InReplyToID)
	assert.Equal(t, "422", items[2].Error)
}

func TestWriteRun_Idempotent(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := report("run-1", started)
	require.NoError(t, j.WriteRun(ctx, r))
	r.Synced = 99
	require.NoError(t, j.WriteRun(ctx, r))

	runs, err := j.RecentRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Synced)

	items, err := j.RunItems(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, j.WriteRun(ctx, report(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := j.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestRecentRuns_Empty(t *testing.T) {
	runs, err := openTest(t).RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}
