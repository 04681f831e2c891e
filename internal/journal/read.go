package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run is one journal row.
type Run struct {
	ID            string         `json:"id" yaml:"id"`
	StartedAt     time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time      `json:"finished_at" yaml:"finished_at"`
	DryRun        bool           `json:"dry_run" yaml:"dry_run"`
	Fetched       int            `json:"fetched" yaml:"fetched"`
	Processed     int            `json:"processed" yaml:"processed"`
	Synced        int            `json:"synced" yaml:"synced"`
	Planned       int            `json:"planned" yaml:"planned"`
	Failed        int            `json:"failed" yaml:"failed"`
	Orphaned      int            `json:"orphaned" yaml:"orphaned"`
	MediaFailures int            `json:"media_failures" yaml:"media_failures"`
	BreakerOpen   bool           `json:"breaker_open" yaml:"breaker_open"`
	Skipped       map[string]int `json:"skipped" yaml:"skipped"`
	Filtered      map[string]int `json:"filtered" yaml:"filtered"`
	PersistenceOK bool           `json:"persistence_ok" yaml:"persistence_ok"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Item is one journal run_items row.
type Item struct {
	Seq           int    `json:"seq"`
	SourceID      string `json:"source_id"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	DestinationID string `json:"destination_id,omitempty"`
	InReplyToID   string `json:"in_reply_to_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// RecentRuns returns up to n runs, newest first.
// Returns an empty slice (not nil) when the journal is empty.
func (j *Journal) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, dry_run, fetched, processed, synced, planned, failed,
		       orphaned, media_failures, breaker_open, skipped_json, filtered_json, persistence_ok, error
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunItems returns the item results of one run in the order they happened.
func (j *Journal) RunItems(ctx context.Context, runID string) ([]Item, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, source_id, outcome, reason, destination_id, in_reply_to_id, error
		FROM run_items
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Seq, &it.SourceID, &it.Outcome, &it.Reason, &it.DestinationID, &it.InReplyToID, &it.Error); err != nil {
			return nil, fmt.Errorf("scan run item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run items: %w", err)
	}
	return items, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r                         Run
		started, finished         string
		skippedJSON, filteredJSON string
	)
	err := rows.Scan(
		&r.ID, &started, &finished, &r.DryRun, &r.Fetched, &r.Processed, &r.Synced, &r.Planned, &r.Failed,
		&r.Orphaned, &r.MediaFailures, &r.BreakerOpen, &skippedJSON, &filteredJSON, &r.PersistenceOK, &r.Error,
	)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Run{}, fmt.Errorf("run %s finished_at: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(skippedJSON), &r.Skipped); err != nil {
		return Run{}, fmt.Errorf("run %s skipped: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(filteredJSON), &r.Filtered); err != nil {
		return Run{}, fmt.Errorf("run %s filtered: %w", r.ID, err)
	}
	return r, nil
}
