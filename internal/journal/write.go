package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hossain-khan/social-sync/internal/engine"
)

// WriteRun records a finished run and its item results in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same run id
// twice leaves the first record untouched.
//
// Implements engine.RunRecorder.
func (j *Journal) WriteRun(ctx context.Context, r *engine.Report) error {
	skipped, err := json.Marshal(r.Skipped)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	filtered, err := json.Marshal(r.Filtered)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, finished_at, dry_run, fetched, processed, synced, planned, failed,
		 orphaned, media_failures, breaker_open, skipped_json, filtered_json, persistence_ok, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.RunID,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
		r.DryRun,
		r.Fetched,
		r.Processed,
		r.Synced,
		r.Planned,
		r.Failed,
		r.Orphaned,
		r.MediaFailures,
		r.BreakerOpen,
		string(skipped),
		string(filtered),
		r.PersistenceOK,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit()
	}

	for i, item := range r.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_items
			(run_id, seq, source_id, outcome, reason, destination_id, in_reply_to_id, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.RunID,
			i+1,
			item.SourceID,
			item.Outcome,
			item.Reason,
			item.DestinationID,
			item.InReplyToID,
			item.Error,
		)
		if err != nil {
			return fmt.Errorf("write run item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
