package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	l, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, l.SyncedCount())
}

func TestFileStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := NewFileStore(path)

	l := New()
	require.NoError(t, l.RecordSynced("at://a", "d1", t0))
	require.NoError(t, s.Save(ctx, l))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsSynced("at://a"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	l := New()
	require.NoError(t, l.RecordSynced("a", "d1", t0))
	require.NoError(t, s.Save(ctx, l))
	require.NoError(t, l.RecordSynced("b", "d2", t0))
	require.NoError(t, s.Save(ctx, l))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.SyncedCount())
}

func TestFileStore_CorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	assert.ErrorIs(t, s.Save(ctx, New()), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
