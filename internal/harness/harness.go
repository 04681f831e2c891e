package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/testutil"
	"github.com/hossain-khan/social-sync/internal/transform"
)

// Start is the fake clock's time when the first run begins.
var Start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// runGap is how far the clock moves between runs.
const runGap = time.Hour

// fastRetry keeps retry semantics while making backoff waits negligible.
var fastRetry = engine.RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	Multiplier:      1,
}

// Harness holds the fakes one scenario runs against.
type Harness struct {
	clock  *testutil.FakeClock
	source *testutil.FakeSource
	dest   *testutil.FakeDestination
	store  *testutil.MemoryStore
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Seed the ledger from existing records
//  2. Build the source timeline and destination failure script
//  3. Run the engine options.runs times, advancing the clock between runs
//  4. Collect the trace and evaluate assertions
//
// A run that aborts is recorded in the trace; it is not a harness error.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	runs := scenario.Options.Runs
	if runs == 0 {
		runs = 1
	}
	ids := make([]string, runs)
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}

	strategy, _ := engine.ParseMediaStrategy(scenario.Options.MediaStrategy)
	opts := []engine.EngineOption{
		engine.WithClock(h.clock),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(ids...)),
		engine.WithLogger(h.logger),
		engine.WithTransformer(transform.New(
			transform.WithAttribution(scenario.Options.Attribution),
			transform.WithLogger(h.logger),
		)),
		engine.WithMediaStrategy(strategy),
		engine.WithRetryPolicy(fastRetry),
		engine.WithItemDelay(0),
		engine.WithBreakerThreshold(scenario.Options.BreakerThreshold),
	}
	if scenario.Options.OptOutTag != "" {
		opts = append(opts, engine.WithOptOutTag(scenario.Options.OptOutTag))
	}
	eng := engine.New(h.source, h.dest, h.store, opts...)

	result := NewResult(scenario.Name)
	ctx := context.Background()
	for i := 0; i < runs; i++ {
		if i > 0 {
			h.clock.Advance(runGap)
		}
		before := len(h.dest.Published)
		report, runErr := eng.Run(ctx, engine.RunOptions{
			DryRun:   scenario.Options.DryRun,
			MaxPosts: scenario.Options.MaxPosts,
		})
		result.Trace.Runs = append(result.Trace.Runs, runTrace(report, runErr, h.dest.Published[before:]))
	}

	l := h.store.Ledger()
	for _, r := range l.Synced() {
		result.Trace.Ledger.Synced = append(result.Trace.Ledger.Synced, SyncedEntry{
			Source:      ShortID(r.SourceID),
			Destination: r.DestinationID,
		})
	}
	for _, r := range l.Skipped() {
		result.Trace.Ledger.Skipped = append(result.Trace.Ledger.Skipped, SkippedEntry{
			Source: ShortID(r.SourceID),
			Reason: r.Reason,
		})
	}

	for _, msg := range EvaluateAssertions(result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario) (*Harness, error) {
	seed, err := s.Existing.toLedger(Start.Add(-24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	source := &testutil.FakeSource{DownloadFailures: map[string]int{}}
	for ref, n := range s.Destination.DownloadFailures {
		source.DownloadFailures[ref] = n
	}
	for _, item := range s.Items {
		source.Items = append(source.Items, item.toSourceItem(Start))
	}
	for _, f := range s.Filtered {
		source.Filtered = append(source.Filtered, engine.Filtered{ID: ExpandID(f.ID, ""), Reason: f.Reason})
	}

	dest := &testutil.FakeDestination{Limit: s.Destination.Limit}
	for _, entry := range s.Destination.Publish {
		injected, ok := scriptError(entry)
		if !ok {
			return nil, fmt.Errorf("unknown script entry %q", entry)
		}
		dest.PublishErrors = append(dest.PublishErrors, injected)
	}
	for _, entry := range s.Destination.Upload {
		injected, ok := scriptError(entry)
		if !ok {
			return nil, fmt.Errorf("unknown script entry %q", entry)
		}
		dest.UploadErrors = append(dest.UploadErrors, injected)
	}

	return &Harness{
		clock:  testutil.NewFakeClock(Start),
		source: source,
		dest:   dest,
		store:  testutil.NewMemoryStore(seed),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

func runTrace(report *engine.Report, runErr error, published []post.DestinationItem) RunTrace {
	rt := RunTrace{
		RunID:       report.RunID,
		BreakerOpen: report.BreakerOpen,
		Items:       []TraceItem{},
		Published:   []TracePublish{},
	}
	if runErr != nil {
		rt.Error = runErr.Error()
	}
	if len(report.Filtered) > 0 {
		rt.Filtered = report.Filtered
	}
	for _, item := range report.Items {
		rt.Items = append(rt.Items, TraceItem{
			Source:      ShortID(item.SourceID),
			Outcome:     item.Outcome,
			Reason:      item.Reason,
			Destination: item.DestinationID,
			InReplyTo:   item.InReplyToID,
			Text:        item.Text,
			Media:       item.MediaCount,
			Error:       item.Error,
		})
	}
	for _, p := range published {
		rt.Published = append(rt.Published, TracePublish{
			ID:        p.ID,
			InReplyTo: p.InReplyToID,
			Text:      p.Text,
			Media:     p.MediaIDs,
			Sensitive: p.Sensitive,
			Spoiler:   p.SpoilerText,
			Language:  p.Language,
		})
	}
	return rt
}
