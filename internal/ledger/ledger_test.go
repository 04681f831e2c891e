package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)

func TestLedger_RecordAndLookup(t *testing.T) {
	l := New()

	require.NoError(t, l.RecordSynced("at://a", "d1", t0))
	require.NoError(t, l.RecordSkipped("at://b", ReasonOptOut, t0))

	assert.True(t, l.IsSynced("at://a"))
	assert.False(t, l.IsSkipped("at://a"))
	assert.True(t, l.IsSkipped("at://b"))
	assert.True(t, l.Has("at://b"))
	assert.False(t, l.Has("at://c"))

	dest, ok := l.DestinationIDFor("at://a")
	assert.True(t, ok)
	assert.Equal(t, "d1", dest)

	_, ok = l.DestinationIDFor("at://b")
	assert.False(t, ok)

	reason, ok := l.SkipReason("at://b")
	assert.True(t, ok)
	assert.Equal(t, ReasonOptOut, reason)

	assert.Equal(t, "at://a", l.LastSourceID())
	assert.Equal(t, 1, l.SyncedCount())
	assert.Equal(t, 1, l.SkippedCount())
	assert.Equal(t, map[string]int{ReasonOptOut: 1}, l.SkippedByReason())
}

func TestLedger_SecondRecordIsInvariantError(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordSynced("x", "d1", t0))

	err := l.RecordSynced("x", "d2", t0)
	require.Error(t, err)
	assert.True(t, IsInvariantError(err))

	err = l.RecordSkipped("x", ReasonRepost, t0)
	assert.True(t, IsInvariantError(err))

	require.NoError(t, l.RecordSkipped("y", ReasonRepost, t0))
	err = l.RecordSynced("y", "d3", t0)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "skipped", ie.Existing)
	assert.Equal(t, "synced", ie.Attempted)

	assert.Equal(t, 1, l.SyncedCount())
	assert.Equal(t, 1, l.SkippedCount())
}

func TestLedger_LastSyncTime(t *testing.T) {
	l := New()
	_, ok := l.LastSyncTime()
	assert.False(t, ok)

	l.MarkSyncTime(t0)
	got, ok := l.LastSyncTime()
	assert.True(t, ok)
	assert.Equal(t, t0, got)
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordSynced("a", "d1", t0))

	c := l.Clone()
	require.NoError(t, c.RecordSynced("b", "d2", t0))

	assert.True(t, c.IsSynced("a"))
	assert.False(t, l.IsSynced("b"))
}

func TestLedger_AccessorsReturnCopies(t *testing.T) {
	l := New()
	require.NoError(t, l.RecordSynced("a", "d1", t0))

	recs := l.Synced()
	recs[0].DestinationID = "tampered"

	dest, _ := l.DestinationIDFor("a")
	assert.Equal(t, "d1", dest)
}
