package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace is what the engine did, in golden-file form.
	Trace *Trace `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(name string) *Result {
	return &Result{
		Pass: true,
		Trace: &Trace{
			Scenario: name,
			Runs:     []RunTrace{},
			Ledger:   LedgerTrace{Synced: []SyncedEntry{}, Skipped: []SkippedEntry{}},
		},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Trace is the deterministic record of a scenario. Source ids of the
// account's own posts are shortened to their record keys.
type Trace struct {
	Scenario string      `json:"scenario"`
	Runs     []RunTrace  `json:"runs"`
	Ledger   LedgerTrace `json:"ledger"`
}

// RunTrace is one engine run.
type RunTrace struct {
	RunID       string         `json:"run_id"`
	Error       string         `json:"error,omitempty"`
	BreakerOpen bool           `json:"breaker_open,omitempty"`
	Filtered    map[string]int `json:"filtered,omitempty"`
	Items       []TraceItem    `json:"items"`
	Published   []TracePublish `json:"published"`
}

// TraceItem is one per-item outcome from the run report.
type TraceItem struct {
	Source      string `json:"source"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	Destination string `json:"destination,omitempty"`
	InReplyTo   string `json:"in_reply_to,omitempty"`
	Text        string `json:"text,omitempty"`
	Media       int    `json:"media,omitempty"`
	Error       string `json:"error,omitempty"`
}

// TracePublish is one status the destination accepted.
type TracePublish struct {
	ID        string   `json:"id"`
	InReplyTo string   `json:"in_reply_to,omitempty"`
	Text      string   `json:"text"`
	Media     []string `json:"media,omitempty"`
	Sensitive bool     `json:"sensitive,omitempty"`
	Spoiler   string   `json:"spoiler,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// LedgerTrace is the saved ledger after the last run, without timestamps.
type LedgerTrace struct {
	Synced  []SyncedEntry  `json:"synced"`
	Skipped []SkippedEntry `json:"skipped"`
}

// SyncedEntry is one SyncRecord.
type SyncedEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// SkippedEntry is one SkipRecord.
type SkippedEntry struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// results returns every item result for source across all runs.
func (t *Trace) results(source string) []TraceItem {
	var out []TraceItem
	for _, run := range t.Runs {
		for _, item := range run.Items {
			if item.Source == source {
				out = append(out, item)
			}
		}
	}
	return out
}

func (t *Trace) published() []TracePublish {
	var out []TracePublish
	for _, run := range t.Runs {
		out = append(out, run.Published...)
	}
	return out
}
