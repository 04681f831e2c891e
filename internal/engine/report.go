package engine

import (
	"time"
)

// Item outcomes recorded in ItemResult.Outcome.
const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomePlanned = "planned" // dry run

	// OutcomeUnrecorded is a post the destination accepted whose ledger
	// save failed. The next run may publish it again.
	OutcomeUnrecorded = "unrecorded"
)

// Report summarises one run.
type Report struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	DryRun        bool           `json:"dry_run"`
	Fetched       int            `json:"fetched"`
	Processed     int            `json:"processed"`
	Synced        int            `json:"synced"`
	Planned       int            `json:"planned"` // dry run: items that would be published
	Skipped       map[string]int `json:"skipped"`
	Failed        int            `json:"failed"`
	Unrecorded    int            `json:"unrecorded"`
	Orphaned      int            `json:"orphaned"`
	Filtered      map[string]int `json:"filtered"`
	MediaFailures int            `json:"media_failures"`
	BreakerOpen   bool           `json:"breaker_open"`
	PersistenceOK bool           `json:"persistence_ok"`
	Error         string         `json:"error,omitempty"`
	Items         []ItemResult   `json:"items"`
}

// ItemResult is the per-item line of a report.
type ItemResult struct {
	SourceID      string `json:"source_id"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	DestinationID string `json:"destination_id,omitempty"`
	InReplyToID   string `json:"in_reply_to_id,omitempty"`
	Text          string `json:"text,omitempty"` // dry run only
	MediaCount    int    `json:"media_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

func newReport(runID string, started time.Time, dryRun bool) *Report {
	return &Report{
		RunID:         runID,
		StartedAt:     started,
		DryRun:        dryRun,
		Skipped:       map[string]int{},
		Filtered:      map[string]int{},
		PersistenceOK: true,
		Items:         []ItemResult{},
	}
}

// SkippedTotal sums skipped items across reasons.
func (r *Report) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Succeeded reports whether the run completed without failed items or
// fatal errors.
func (r *Report) Succeeded() bool {
	return r.Failed == 0 && r.PersistenceOK && r.Error == ""
}

// Duration is the wall time the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) skip(id, reason string) {
	r.Skipped[reason]++
	r.Items = append(r.Items, ItemResult{SourceID: id, Outcome: OutcomeSkipped, Reason: reason})
}

func (r *Report) fail(id, reason string, err error) {
	r.Failed++
	res := ItemResult{SourceID: id, Outcome: OutcomeFailed, Reason: reason}
	if err != nil {
		res.Error = err.Error()
	}
	r.Items = append(r.Items, res)
}

func (r *Report) unrecorded(id, destinationID string, err error) {
	r.Unrecorded++
	r.Items = append(r.Items, ItemResult{
		SourceID:      id,
		Outcome:       OutcomeUnrecorded,
		DestinationID: destinationID,
		Error:         err.Error(),
	})
}
