package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/journal"
	"github.com/hossain-khan/social-sync/internal/ledger"
	"github.com/hossain-khan/social-sync/internal/transform"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	DryRun                bool
	SinceDate             string
	DisableSourcePlatform bool
	MaxPosts              int
	MediaStrategy         string
	StateFile             string
	LogLevel              string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Cross-post new Bluesky posts to Mastodon",
		Long: `Run one sync pass.

Fetches recent Bluesky posts, publishes the ones not yet recorded in the
state file, and records every decision. Safe to re-run at any time.

Exit codes:
  0 - All candidates handled
  1 - Run finished but some posts failed (they are retried next run)
  2 - Command or configuration error, or login failed
  3 - State file could not be read or written; run aborted

Examples:
  social-sync sync
  social-sync sync --dry-run --since-date 2025-01-01
  social-sync sync --max-posts 20 --media-strategy skip-post --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show what would be posted without publishing or writing state")
	cmd.Flags().StringVar(&opts.SinceDate, "since-date", "", "only sync posts created after this date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().BoolVar(&opts.DisableSourcePlatform, "disable-source-platform", false, "do not append the source attribution to posts")
	cmd.Flags().IntVar(&opts.MaxPosts, "max-posts", engine.DefaultMaxPosts, "maximum posts to consider per run")
	cmd.Flags().StringVar(&opts.MediaStrategy, "media-strategy", string(engine.MediaPlaceholder), "when images fail to transfer: text-placeholder|skip-post|partial")
	cmd.Flags().StringVar(&opts.StateFile, "state-file", "", "state file path (empty uses config)")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug|info|warn|error (empty uses config)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return WrapExitError(ExitCommandError, "missing credentials", err)
	}
	strategy, ok := engine.ParseMediaStrategy(cfg.Sync.MediaStrategy)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid media strategy %q", cfg.Sync.MediaStrategy))
	}

	logger, err := newLogger(opts.RootOptions, cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	clock := opts.Deps.Clock
	if clock == nil {
		clock = engine.SystemClock{}
	}

	eopts := []engine.EngineOption{
		engine.WithClock(clock),
		engine.WithLogger(logger.Logger),
		engine.WithTransformer(transform.New(
			transform.WithAttribution(!cfg.Sync.DisableSourcePlatform),
			transform.WithLogger(logger.Logger),
		)),
		engine.WithMediaStrategy(strategy),
		engine.WithItemDelay(cfg.Sync.ItemDelay),
		engine.WithOptOutTag(cfg.Sync.OptOutTag),
	}
	if opts.Deps.RunIDs != nil {
		eopts = append(eopts, engine.WithRunIDGenerator(opts.Deps.RunIDs))
	}
	if j := openJournal(cfg, logger.Logger); j != nil {
		defer j.Close()
		eopts = append(eopts, engine.WithRunRecorder(j))
	}

	eng := engine.New(
		opts.Deps.NewSource(cfg, logger.Logger),
		opts.Deps.NewDestination(cfg, logger.Logger),
		ledger.NewFileStore(cfg.StateFile),
		eopts...,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := eng.Run(ctx, engine.RunOptions{
		DryRun:   cfg.Sync.DryRun,
		Since:    cfg.Since(clock.Now()),
		MaxPosts: cfg.Sync.MaxPosts,
	})

	f := formatter(opts.RootOptions, cmd)
	if report != nil {
		f.RunID = report.RunID
	}
	if runErr != nil {
		return syncError(f, report, runErr)
	}

	if opts.Format == "json" {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		writeReport(cmd.OutOrStdout(), report, opts.Verbose)
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d post(s) failed to sync", report.Failed))
	}
	return nil
}

// openJournal opens the run history database. Failure only disables
// history; the ledger is the source of truth.
func openJournal(cfg *config.Config, logger *slog.Logger) *journal.Journal {
	if cfg.JournalFile == "" {
		return nil
	}
	j, err := journal.Open(cfg.JournalFile)
	if err != nil {
		logger.Warn("run journal unavailable", "path", cfg.JournalFile, "error", err)
		return nil
	}
	return j
}

func syncError(f *OutputFormatter, report *engine.Report, err error) error {
	code, exit := "SYNC", ExitFailure
	var ee *engine.Error
	if errors.As(err, &ee) {
		code = string(ee.Code)
	}
	switch {
	case engine.IsFatal(err):
		exit = ExitAborted
	case engine.IsAuthenticationError(err):
		exit = ExitCommandError
	case errors.Is(err, context.Canceled):
		code = "CANCELED"
	}

	if f.Format == "json" {
		if werr := f.Error(code, err.Error(), report); werr != nil {
			return werr
		}
	}
	return WrapExitError(exit, "sync failed", err)
}

// writeReport prints the human-readable run summary.
func writeReport(w io.Writer, r *engine.Report, verbose bool) {
	fmt.Fprintf(w, "✓ Sync completed (run %s)\n", r.RunID)
	if r.DryRun {
		fmt.Fprintf(w, "  Planned:  %d\n", r.Planned)
	} else {
		fmt.Fprintf(w, "  Synced:   %d\n", r.Synced)
	}
	fmt.Fprintf(w, "  Skipped:  %d%s\n", r.SkippedTotal(), reasons(r.Skipped))
	fmt.Fprintf(w, "  Filtered: %d%s\n", total(r.Filtered), reasons(r.Filtered))
	if r.Failed > 0 {
		fmt.Fprintf(w, "  Failed:   %d\n", r.Failed)
	}
	if r.Orphaned > 0 {
		fmt.Fprintf(w, "  Orphaned: %d (published as top-level posts)\n", r.Orphaned)
	}
	if r.MediaFailures > 0 {
		fmt.Fprintf(w, "  Media:    %d image(s) not transferred\n", r.MediaFailures)
	}
	if r.BreakerOpen {
		fmt.Fprintln(w, "  Mastodon unavailable; remaining posts left for the next run")
	}
	fmt.Fprintf(w, "  Duration: %s\n", r.Duration().Round(time.Millisecond))
	if r.DryRun {
		fmt.Fprintln(w, "  Mode:     DRY RUN (nothing published, state unchanged)")
	}

	for _, item := range r.Items {
		switch {
		case item.Outcome == engine.OutcomeFailed:
			fmt.Fprintf(w, "✗ %s\n  %s\n", item.SourceID, item.Error)
		case item.Outcome == engine.OutcomePlanned:
			fmt.Fprintf(w, "→ %s\n%s\n", item.SourceID, indent(item.Text, "  | "))
		case verbose && item.Outcome == engine.OutcomeSynced:
			fmt.Fprintf(w, "  synced  %s → %s\n", item.SourceID, item.DestinationID)
		case verbose:
			fmt.Fprintf(w, "  skipped %s (%s)\n", item.SourceID, item.Reason)
		}
	}
}

func total(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// reasons renders " (a: 1, b: 2)" in key order, or "" for an empty map.
func reasons(m map[string]int) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, m[k])
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
