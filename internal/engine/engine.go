package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/post"
	"github.com/hossain-khan/social-sync/internal/thread"
	"github.com/hossain-khan/social-sync/internal/transform"
)

// DefaultMaxPosts bounds how many candidates one run fetches.
const DefaultMaxPosts = 10

// DefaultLookback is how far back a run looks when no start date is set.
const DefaultLookback = 7 * 24 * time.Hour

// Engine is the sync orchestrator.
//
// A run moves through Fetching, Filtering, then a per-item loop of
// Dedup, Resolve, Transform, Publish and Record, and finally Done. Items are
// handled strictly one at a time, oldest first, and every ledger write is
// saved before the next item starts.
//
// INVARIANTS:
//   - A source id is published at most once: the ledger is checked before
//     publishing and a SyncRecord is saved right after.
//   - A reply is only published after its parent's SyncRecord exists.
//   - Nothing is recorded for a failed publish, so the next run retries it.
type Engine struct {
	source Source
	dest   Destination
	store  LedgerStore

	clock       Clock
	runIDs      RunIDGenerator
	logger      *slog.Logger
	transformer *transform.Transformer
	resolver    *thread.Resolver
	optOut      *optOutMatcher
	recorder    RunRecorder

	mediaStrategy      MediaStrategy
	retry              RetryPolicy
	itemDelay          time.Duration
	rateLimitThreshold int
	breakerThreshold   uint32
}

// New creates an Engine.
func New(source Source, dest Destination, store LedgerStore, opts ...EngineOption) *Engine {
	e := &Engine{
		source:             source,
		dest:               dest,
		store:              store,
		clock:              SystemClock{},
		runIDs:             UUIDv7Generator{},
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		resolver:           thread.NewResolver(),
		optOut:             newOptOutMatcher(DefaultOptOutTag),
		mediaStrategy:      MediaPlaceholder,
		retry:              DefaultRetryPolicy(),
		itemDelay:          DefaultItemDelay,
		rateLimitThreshold: DefaultRateLimitThreshold,
		breakerThreshold:   DefaultBreakerThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transformer == nil {
		e.transformer = transform.New(transform.WithLogger(e.logger))
	}
	return e
}

// RunOptions parameterise a single run.
type RunOptions struct {
	DryRun   bool
	Since    time.Time // zero means DefaultLookback before now
	MaxPosts int       // zero means DefaultMaxPosts
}

// run carries the state of one Run call.
type run struct {
	opts    RunOptions
	report  *Report
	ledger  *ledger.Ledger
	limit   int
	breaker *gobreaker.CircuitBreaker
	pacer   *pacer
	logger  *slog.Logger
	dryIDs  int
}

// Run performs one sync pass.
//
// The returned report is never nil. A non-nil error means the run aborted:
// authentication, fetch, persistence and invariant failures abort; a failed
// publish does not. On a persistence failure the report has
// PersistenceOK=false.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	started := e.clock.Now()
	runID := e.runIDs.Generate()
	r := &run{
		opts:   opts,
		report: newReport(runID, started, opts.DryRun),
		logger: e.logger.With("run_id", runID),
	}
	if r.opts.MaxPosts <= 0 {
		r.opts.MaxPosts = DefaultMaxPosts
	}
	if r.opts.Since.IsZero() {
		r.opts.Since = started.Add(-DefaultLookback)
	}

	err := e.run(ctx, r)
	r.report.FinishedAt = e.clock.Now()
	if err != nil {
		r.report.Error = err.Error()
		if IsPersistenceError(err) {
			r.report.PersistenceOK = false
		}
		r.logger.Error("sync aborted", "error", err)
	} else {
		r.logger.Info("sync completed",
			"synced", r.report.Synced,
			"skipped", r.report.SkippedTotal(),
			"failed", r.report.Failed,
			"orphaned", r.report.Orphaned,
			"duration", r.report.Duration(),
		)
	}
	e.record(r)
	return r.report, err
}

func (e *Engine) run(ctx context.Context, r *run) error {
	r.logger.Info("sync starting",
		"dry_run", r.opts.DryRun,
		"since", r.opts.Since.Format(time.RFC3339),
		"max_posts", r.opts.MaxPosts,
	)

	if err := e.authenticate(ctx); err != nil {
		return err
	}

	r.limit = e.characterLimit(ctx, r.logger)

	l, err := e.store.Load(ctx)
	if err != nil {
		if ledger.IsInvariantError(err) {
			return &Error{Code: ErrCodeInvariant, Message: "load ledger", Err: err}
		}
		return &Error{Code: ErrCodePersistence, Message: "load ledger", Err: err}
	}
	if r.opts.DryRun {
		l = l.Clone()
	}
	r.ledger = l

	// Fetching
	res, err := e.source.Fetch(ctx, FetchOptions{Limit: r.opts.MaxPosts, Since: r.opts.Since})
	if err != nil {
		return fmt.Errorf("fetch source posts: %w", err)
	}
	r.report.Fetched = len(res.Items) + len(res.Filtered)

	// Filtering
	if err := e.recordFiltered(ctx, r, res.Filtered); err != nil {
		return err
	}

	items := append([]post.SourceItem(nil), res.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})

	r.breaker = newPublishBreaker(e.breakerThreshold, r.logger)
	limits, _ := e.dest.(RateLimited)
	r.pacer = &pacer{
		clock:     e.clock,
		delay:     e.itemDelay,
		threshold: e.rateLimitThreshold,
		limits:    limits,
		logger:    r.logger,
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.ledger.Has(item.ID) {
			r.logger.Debug("already processed", "source_id", item.ID)
			continue
		}
		r.report.Processed++

		err := e.processItem(ctx, r, item)
		if errors.Is(err, gobreaker.ErrOpenState) {
			r.report.BreakerOpen = true
			for j, rest := range items[i:] {
				if r.ledger.Has(rest.ID) {
					continue
				}
				if j > 0 {
					r.report.Processed++
				}
				r.report.fail(rest.ID, ReasonDestinationUnavailable, nil)
			}
			r.logger.Error("destination unavailable, stopping publishes",
				"remaining", len(items)-i,
			)
			break
		}
		if err != nil {
			return err
		}
	}

	// Done
	if r.opts.DryRun {
		return nil
	}
	r.ledger.MarkSyncTime(r.report.StartedAt)
	return e.save(ctx, r)
}

func (e *Engine) authenticate(ctx context.Context) error {
	if a, ok := e.source.(Authenticator); ok {
		if err := a.Authenticate(ctx); err != nil {
			return &Error{Code: ErrCodeAuthentication, Message: "source login failed", Err: err}
		}
	}
	if err := e.dest.Authenticate(ctx); err != nil {
		return &Error{Code: ErrCodeAuthentication, Message: "destination login failed", Err: err}
	}
	return nil
}

func (e *Engine) characterLimit(ctx context.Context, logger *slog.Logger) int {
	limit, err := e.dest.CharacterLimit(ctx)
	if err != nil || limit <= 0 {
		logger.Warn("character limit unavailable, using default",
			"default", transform.DefaultCharacterLimit,
			"error", err,
		)
		return transform.DefaultCharacterLimit
	}
	return limit
}

// recordFiltered writes skip records for items the source excluded so the
// audit trail survives. They are saved in one write.
func (e *Engine) recordFiltered(ctx context.Context, r *run, filtered []Filtered) error {
	dirty := false
	for _, f := range filtered {
		r.report.Filtered[f.Reason]++
		if r.ledger.Has(f.ID) {
			continue
		}
		if r.opts.DryRun {
			continue
		}
		if err := r.ledger.RecordSkipped(f.ID, f.Reason, e.clock.Now()); err != nil {
			return &Error{Code: ErrCodeInvariant, SourceID: f.ID, Err: err}
		}
		dirty = true
	}
	if dirty {
		return e.save(ctx, r)
	}
	return nil
}

// processItem runs one candidate through Resolve, Transform, Publish and
// Record. It returns an error only for conditions that stop the loop.
func (e *Engine) processItem(ctx context.Context, r *run, item post.SourceItem) error {
	logger := r.logger.With("source_id", item.ID)

	if e.optOut.matches(item) {
		logger.Info("skipping opted-out post")
		return e.skip(ctx, r, item.ID, ledger.ReasonOptOut)
	}

	// Resolve
	decision := e.resolver.Resolve(item, r.ledger)
	if decision.Foreign {
		logger.Info("skipping reply to another author", "parent_id", item.ParentID)
		return e.skip(ctx, r, item.ID, ledger.ReasonReplyNotSelfThreaded)
	}
	if decision.Orphaned {
		r.report.Orphaned++
		logger.Warn("parent was never synced, posting standalone", "parent_id", item.ParentID)
	}

	// Transform
	content := e.transformer.Transform(item, r.limit)

	if r.opts.DryRun {
		r.dryIDs++
		destID := fmt.Sprintf("dry-run-%d", r.dryIDs)
		r.report.Planned++
		r.report.Items = append(r.report.Items, ItemResult{
			SourceID:      item.ID,
			Outcome:       OutcomePlanned,
			DestinationID: destID,
			InReplyToID:   decision.ParentDestinationID,
			Text:          content.Text,
			MediaCount:    len(content.Images),
		})
		logger.Info("dry run: would publish", "chars", transform.Count(content.Text), "media", len(content.Images))
		if err := r.ledger.RecordSynced(item.ID, destID, e.clock.Now()); err != nil {
			return &Error{Code: ErrCodeInvariant, SourceID: item.ID, Err: err}
		}
		return nil
	}

	// Media
	var mediaIDs []string
	if len(content.Images) > 0 {
		results := e.transferMedia(ctx, item.ID, content.Images)
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, missing := splitMedia(results)
		mediaIDs = ids
		if len(missing) > 0 {
			r.report.MediaFailures += len(missing)
			switch e.mediaStrategy {
			case MediaSkipPost:
				logger.Warn("media incomplete, leaving post for next run", "missing", len(missing))
				r.report.fail(item.ID, string(ErrCodePartialMedia), &Error{
					Code:     ErrCodePartialMedia,
					Message:  fmt.Sprintf("%d of %d images failed", len(missing), len(content.Images)),
					SourceID: item.ID,
				})
				return nil
			case MediaPartial:
				logger.Warn("media incomplete, publishing without it", "missing", len(missing))
			default:
				logger.Warn("media incomplete, describing it in text", "missing", len(missing))
				content = e.transformer.TransformDegraded(item, r.limit, missing)
			}
		}
	}

	// Publish
	draft := post.Draft{
		Text:        content.Text,
		InReplyToID: decision.ParentDestinationID,
		MediaIDs:    mediaIDs,
		Sensitive:   content.Sensitive,
		SpoilerText: content.SpoilerText,
		Language:    content.Language,
	}
	published, err := e.publish(ctx, r, draft, logger)
	if errors.Is(err, gobreaker.ErrOpenState) {
		return err
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Error("publish failed", "error", err)
		r.report.fail(item.ID, "", err)
		return nil
	}

	// Record
	if err := r.ledger.RecordSynced(item.ID, published.ID, e.clock.Now()); err != nil {
		return &Error{Code: ErrCodeInvariant, SourceID: item.ID, Err: err}
	}
	if err := e.save(ctx, r); err != nil {
		r.report.unrecorded(item.ID, published.ID, err)
		logger.Error("post published but not recorded; it may be posted again",
			"destination_id", published.ID,
			"error", err,
		)
		return err
	}
	r.report.Synced++
	r.report.Items = append(r.report.Items, ItemResult{
		SourceID:      item.ID,
		Outcome:       OutcomeSynced,
		DestinationID: published.ID,
		InReplyToID:   published.InReplyToID,
		MediaCount:    len(published.MediaIDs),
	})
	logger.Info("post synced", "destination_id", published.ID, "in_reply_to", draft.InReplyToID)

	return r.pacer.wait(ctx)
}

// publish sends draft through the breaker. Only transient errors are retried:
// anything else may have created the status already.
func (e *Engine) publish(ctx context.Context, r *run, draft post.Draft, logger *slog.Logger) (*post.DestinationItem, error) {
	notify := func(err error, d time.Duration) {
		logger.Warn("retrying publish", "error", err, "backoff", d)
	}
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return Retry(ctx, e.retry, IsTransientError, func(ctx context.Context) (*post.DestinationItem, error) {
			return e.dest.Publish(ctx, draft)
		}, notify)
	})
	if err != nil {
		return nil, err
	}
	item, _ := out.(*post.DestinationItem)
	if item == nil || item.ID == "" {
		return nil, errors.New("destination returned no status id")
	}
	return item, nil
}

// skip writes a SkipRecord and saves it. Dry runs record nothing.
func (e *Engine) skip(ctx context.Context, r *run, id, reason string) error {
	r.report.skip(id, reason)
	if r.opts.DryRun {
		return nil
	}
	if err := r.ledger.RecordSkipped(id, reason, e.clock.Now()); err != nil {
		return &Error{Code: ErrCodeInvariant, SourceID: id, Err: err}
	}
	return e.save(ctx, r)
}

func (e *Engine) save(ctx context.Context, r *run) error {
	if r.opts.DryRun {
		return nil
	}
	// Each save records work already done on the destination, so it
	// completes even when the run is being cancelled.
	if err := e.store.Save(context.WithoutCancel(ctx), r.ledger); err != nil {
		return &Error{Code: ErrCodePersistence, Message: "save ledger", Err: err}
	}
	return nil
}

func (e *Engine) record(r *run) {
	if e.recorder == nil {
		return
	}
	// The run context may already be cancelled; history is still worth keeping.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.recorder.WriteRun(ctx, r.report); err != nil {
		r.logger.Warn("could not write run journal", "error", err)
	}
}
