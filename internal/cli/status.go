package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/journal"
	"github.com/hossain-khan/social-sync/internal/ledger"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Runs  int
	RunID string
}

// StatusInfo is the status command's output.
type StatusInfo struct {
	StateFile       string         `json:"state_file"`
	LastSyncTime    *time.Time     `json:"last_sync_time"`
	LastSourceID    string         `json:"last_source_id,omitempty"`
	SyncedPosts     int            `json:"synced_posts"`
	SkippedPosts    int            `json:"skipped_posts"`
	SkippedByReason map[string]int `json:"skipped_by_reason"`
	RecentRuns      []journal.Run  `json:"recent_runs"`
	RunID           string         `json:"run_id,omitempty"`
	RunItems        []journal.Item `json:"run_items,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync state and recent runs",
		Long: `Show what the state file records: last sync time, how many posts were
synced or skipped, and the most recent runs from the run journal.
With --run, also list what happened to each post in that run.

Does not contact Bluesky or Mastodon and needs no credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Runs, "runs", 5, "number of recent runs to show")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show per-post results of this run id")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}

	l, err := ledger.NewFileStore(cfg.StateFile).Load(cmd.Context())
	if err != nil {
		return WrapExitError(ExitAborted, "reading state file", err)
	}

	info := StatusInfo{
		StateFile:       cfg.StateFile,
		LastSourceID:    l.LastSourceID(),
		SyncedPosts:     l.SyncedCount(),
		SkippedPosts:    l.SkippedCount(),
		SkippedByReason: l.SkippedByReason(),
		RecentRuns:      []journal.Run{},
	}
	if t, ok := l.LastSyncTime(); ok {
		info.LastSyncTime = &t
	}

	// Only read an existing journal; status never creates one.
	if cfg.JournalFile != "" && (opts.Runs > 0 || opts.RunID != "") {
		if _, statErr := os.Stat(cfg.JournalFile); statErr == nil {
			if err := readJournal(cmd, cfg.JournalFile, opts, &info); err != nil {
				return WrapExitError(ExitFailure, "reading run journal", err)
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return WrapExitError(ExitFailure, "reading run journal", statErr)
		}
	}
	if opts.RunID != "" && len(info.RunItems) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("no items recorded for run %s", opts.RunID))
	}

	if opts.Format == "json" {
		return formatter(opts.RootOptions, cmd).Success(info)
	}
	writeStatus(cmd.OutOrStdout(), info)
	return nil
}

func readJournal(cmd *cobra.Command, path string, opts *StatusOptions, info *StatusInfo) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.Runs > 0 {
		runs, err := j.RecentRuns(cmd.Context(), opts.Runs)
		if err != nil {
			return err
		}
		info.RecentRuns = runs
	}
	if opts.RunID != "" {
		items, err := j.RunItems(cmd.Context(), opts.RunID)
		if err != nil {
			return err
		}
		info.RunID = opts.RunID
		info.RunItems = items
	}
	return nil
}

func writeStatus(w io.Writer, info StatusInfo) {
	fmt.Fprintln(w, "Social Sync Status")
	fmt.Fprintf(w, "  State file:   %s\n", info.StateFile)
	if info.LastSyncTime != nil {
		fmt.Fprintf(w, "  Last sync:    %s\n", info.LastSyncTime.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "  Last sync:    Never")
	}
	fmt.Fprintf(w, "  Synced posts: %d\n", info.SyncedPosts)
	fmt.Fprintf(w, "  Skipped:      %d%s\n", info.SkippedPosts, reasons(info.SkippedByReason))

	if len(info.RunItems) > 0 {
		fmt.Fprintf(w, "Run %s:\n", info.RunID)
		for _, it := range info.RunItems {
			line := fmt.Sprintf("  %-8s %s", it.Outcome, it.SourceID)
			switch {
			case it.DestinationID != "":
				line += " -> " + it.DestinationID
			case it.Reason != "":
				line += " (" + it.Reason + ")"
			}
			if it.Error != "" {
				line += ": " + it.Error
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(info.RecentRuns) == 0 {
		return
	}
	fmt.Fprintln(w, "Recent runs:")
	for _, r := range info.RecentRuns {
		mark := "✓"
		if r.Failed > 0 || !r.PersistenceOK || r.Error != "" {
			mark = "✗"
		}
		mode := ""
		if r.DryRun {
			mode = " [dry run]"
		}
		fmt.Fprintf(w, "  %s %s  %s  synced=%d failed=%d skipped=%d%s\n",
			mark, r.StartedAt.Format(time.RFC3339), r.ID, r.Synced, r.Failed, total(r.Skipped), mode)
	}
}
