package ledger

import (
	"time"
)

// Skip reasons recorded in SkipRecord.Reason. The set is closed for this
// module but the field is a plain string so older or newer snapshots load.
const (
	ReasonOptOut               = "explicit-opt-out"
	ReasonReplyNotSelfThreaded = "reply-not-self-threaded"
	ReasonRepost               = "repost"
	ReasonQuoteOfOther         = "quote-of-other"
	ReasonOlderThanSyncDate    = "older-than-sync-date"
)

// SyncRecord is written once a source post has been published.
type SyncRecord struct {
	SourceID      string    `json:"sourceUri"`
	DestinationID string    `json:"destinationId"`
	SyncedAt      time.Time `json:"syncedAt"`
}

// SkipRecord is written when a source post is deliberately not published.
type SkipRecord struct {
	SourceID  string    `json:"sourceUri"`
	Reason    string    `json:"reason"`
	SkippedAt time.Time `json:"skippedAt"`
}

// Ledger holds sync and skip records with O(1) lookup by source id.
// It is not safe for concurrent use; the engine owns it for a whole run.
type Ledger struct {
	lastSyncTime time.Time
	lastSourceID string
	synced       []SyncRecord
	skipped      []SkipRecord
	syncedIdx    map[string]int
	skippedIdx   map[string]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		syncedIdx:  make(map[string]int),
		skippedIdx: make(map[string]int),
	}
}

// IsSynced reports whether id has a SyncRecord.
func (l *Ledger) IsSynced(id string) bool {
	_, ok := l.syncedIdx[id]
	return ok
}

// IsSkipped reports whether id has a SkipRecord.
func (l *Ledger) IsSkipped(id string) bool {
	_, ok := l.skippedIdx[id]
	return ok
}

// Has reports whether id has any record.
func (l *Ledger) Has(id string) bool {
	return l.IsSynced(id) || l.IsSkipped(id)
}

// DestinationIDFor returns the destination id id was published as. Records
// loaded from old snapshots may lack a destination id; those report false.
func (l *Ledger) DestinationIDFor(id string) (string, bool) {
	i, ok := l.syncedIdx[id]
	if !ok || l.synced[i].DestinationID == "" {
		return "", false
	}
	return l.synced[i].DestinationID, true
}

// SkipReason returns the recorded skip reason for id.
func (l *Ledger) SkipReason(id string) (string, bool) {
	i, ok := l.skippedIdx[id]
	if !ok {
		return "", false
	}
	return l.skipped[i].Reason, true
}

// RecordSynced appends a SyncRecord and advances LastSourceID.
func (l *Ledger) RecordSynced(id, destinationID string, at time.Time) error {
	if err := l.checkAbsent(id, "synced"); err != nil {
		return err
	}
	l.syncedIdx[id] = len(l.synced)
	l.synced = append(l.synced, SyncRecord{SourceID: id, DestinationID: destinationID, SyncedAt: at.UTC()})
	l.lastSourceID = id
	return nil
}

// RecordSkipped appends a SkipRecord.
func (l *Ledger) RecordSkipped(id, reason string, at time.Time) error {
	if err := l.checkAbsent(id, "skipped"); err != nil {
		return err
	}
	l.skippedIdx[id] = len(l.skipped)
	l.skipped = append(l.skipped, SkipRecord{SourceID: id, Reason: reason, SkippedAt: at.UTC()})
	return nil
}

func (l *Ledger) checkAbsent(id, attempted string) error {
	if i, ok := l.syncedIdx[id]; ok {
		return &InvariantError{SourceID: id, Existing: "synced", Attempted: attempted, DestinationID: l.synced[i].DestinationID}
	}
	if _, ok := l.skippedIdx[id]; ok {
		return &InvariantError{SourceID: id, Existing: "skipped", Attempted: attempted}
	}
	return nil
}

// MarkSyncTime sets the time of the last completed run.
func (l *Ledger) MarkSyncTime(t time.Time) {
	l.lastSyncTime = t.UTC()
}

// LastSyncTime returns the time of the last completed run, if any.
func (l *Ledger) LastSyncTime() (time.Time, bool) {
	return l.lastSyncTime, !l.lastSyncTime.IsZero()
}

// LastSourceID returns the id of the most recently synced source post.
func (l *Ledger) LastSourceID() string {
	return l.lastSourceID
}

// SyncedCount returns the number of sync records.
func (l *Ledger) SyncedCount() int {
	return len(l.synced)
}

// SkippedCount returns the number of skip records.
func (l *Ledger) SkippedCount() int {
	return len(l.skipped)
}

// SkippedByReason counts skip records per reason.
func (l *Ledger) SkippedByReason() map[string]int {
	counts := make(map[string]int)
	for _, r := range l.skipped {
		counts[r.Reason]++
	}
	return counts
}

// Synced returns a copy of the sync records in insertion order.
func (l *Ledger) Synced() []SyncRecord {
	return append([]SyncRecord(nil), l.synced...)
}

// Skipped returns a copy of the skip records in insertion order.
func (l *Ledger) Skipped() []SkipRecord {
	return append([]SkipRecord(nil), l.skipped...)
}

// Clone returns an independent copy. Dry runs work on a clone so that
// threading decisions see simulated records without touching the original.
func (l *Ledger) Clone() *Ledger {
	c, _ := FromSnapshot(l.Snapshot())
	return c
}
