package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Snapshot is the persisted form of a Ledger. Its JSON encoding is the
// on-disk contract:
//
//	{
//	  "lastSyncTime": "2025-01-02T03:04:05Z" | null,
//	  "syncedPosts": [{"sourceUri", "destinationId", "syncedAt"}],
//	  "lastSourcePostUri": "at://..." | null,
//	  "skippedPosts": [{"sourceUri", "reason", "skippedAt"}]
//	}
type Snapshot struct {
	LastSyncTime      *time.Time   `json:"lastSyncTime"`
	SyncedPosts       []SyncRecord `json:"syncedPosts"`
	LastSourcePostURI *string      `json:"lastSourcePostUri"`
	SkippedPosts      []SkipRecord `json:"skippedPosts"`
}

// Snapshot returns the ledger's persisted form. Slices are never nil so they
// encode as [] rather than null.
func (l *Ledger) Snapshot() Snapshot {
	s := Snapshot{
		SyncedPosts:  append([]SyncRecord{}, l.synced...),
		SkippedPosts: append([]SkipRecord{}, l.skipped...),
	}
	if !l.lastSyncTime.IsZero() {
		t := l.lastSyncTime
		s.LastSyncTime = &t
	}
	if l.lastSourceID != "" {
		id := l.lastSourceID
		s.LastSourcePostURI = &id
	}
	return s
}

// FromSnapshot rebuilds a Ledger. Duplicate ids in the snapshot are an
// InvariantError.
func FromSnapshot(s Snapshot) (*Ledger, error) {
	l := New()
	for _, r := range s.SyncedPosts {
		if err := l.RecordSynced(r.SourceID, r.DestinationID, r.SyncedAt); err != nil {
			return nil, err
		}
	}
	for _, r := range s.SkippedPosts {
		if err := l.RecordSkipped(r.SourceID, r.Reason, r.SkippedAt); err != nil {
			return nil, err
		}
	}
	if s.LastSyncTime != nil {
		l.lastSyncTime = s.LastSyncTime.UTC()
	}
	l.lastSourceID = ""
	if s.LastSourcePostURI != nil {
		l.lastSourceID = *s.LastSourcePostURI
	}
	return l, nil
}

// EncodeSnapshot writes s as indented JSON with a trailing newline.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot parses a snapshot. Both the current camelCase layout and
// the older snake_case layout (synced_posts with bluesky_uri/mastodon_id, or
// bare URI strings) are accepted.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, fmt.Errorf("%w: empty file", ErrCorrupt)
	}
	var raw rawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var s Snapshot
	lastSync := firstNonEmpty(raw.LastSyncTime, raw.LegacyLastSyncTime)
	if lastSync != "" {
		t, err := parseTime(lastSync)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: lastSyncTime: %v", ErrCorrupt, err)
		}
		s.LastSyncTime = &t
	}
	if id := firstNonEmpty(raw.LastSourcePostURI, raw.LegacyLastSourcePostURI); id != "" {
		s.LastSourcePostURI = &id
	}

	for _, r := range append(raw.SyncedPosts, raw.LegacySyncedPosts...) {
		at, err := parseOptionalTime(r.at())
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: synced record %s: %v", ErrCorrupt, r.id(), err)
		}
		if r.id() == "" {
			return Snapshot{}, fmt.Errorf("%w: synced record without source id", ErrCorrupt)
		}
		s.SyncedPosts = append(s.SyncedPosts, SyncRecord{SourceID: r.id(), DestinationID: r.destination(), SyncedAt: at})
	}
	for _, r := range append(raw.SkippedPosts, raw.LegacySkippedPosts...) {
		at, err := parseOptionalTime(r.at())
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: skipped record %s: %v", ErrCorrupt, r.id(), err)
		}
		if r.id() == "" {
			return Snapshot{}, fmt.Errorf("%w: skipped record without source id", ErrCorrupt)
		}
		s.SkippedPosts = append(s.SkippedPosts, SkipRecord{SourceID: r.id(), Reason: r.Reason, SkippedAt: at})
	}
	return s, nil
}

type rawSnapshot struct {
	LastSyncTime            string      `json:"lastSyncTime"`
	LegacyLastSyncTime      string      `json:"last_sync_time"`
	SyncedPosts             []rawRecord `json:"syncedPosts"`
	LegacySyncedPosts       []rawRecord `json:"synced_posts"`
	LastSourcePostURI       string      `json:"lastSourcePostUri"`
	LegacyLastSourcePostURI string      `json:"last_bluesky_post_uri"`
	SkippedPosts            []rawRecord `json:"skippedPosts"`
	LegacySkippedPosts      []rawRecord `json:"skipped_posts"`
}

// rawRecord accepts every record shape ever written: the current one, the
// snake_case one and a bare URI string.
type rawRecord struct {
	SourceURI           string `json:"sourceUri"`
	LegacySourceURI     string `json:"bluesky_uri"`
	DestinationID       string `json:"destinationId"`
	LegacyDestinationID string `json:"mastodon_id"`
	Reason              string `json:"reason"`
	SyncedAt            string `json:"syncedAt"`
	LegacySyncedAt      string `json:"synced_at"`
	SkippedAt           string `json:"skippedAt"`
	LegacySkippedAt     string `json:"skipped_at"`
}

func (r *rawRecord) UnmarshalJSON(data []byte) error {
	var uri string
	if err := json.Unmarshal(data, &uri); err == nil {
		*r = rawRecord{SourceURI: uri}
		return nil
	}
	type plain rawRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = rawRecord(p)
	return nil
}

func (r rawRecord) id() string {
	return firstNonEmpty(r.SourceURI, r.LegacySourceURI)
}

func (r rawRecord) destination() string {
	return firstNonEmpty(r.DestinationID, r.LegacyDestinationID)
}

func (r rawRecord) at() string {
	return firstNonEmpty(r.SyncedAt, r.LegacySyncedAt, r.SkippedAt, r.LegacySkippedAt)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Older snapshots wrote naive local ISO timestamps; those are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseTime(s)
}
