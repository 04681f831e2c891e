package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/destination/mastodon"
	"github.com/hossain-khan/social-sync/internal/engine"
	"github.com/hossain-khan/social-sync/internal/source/bluesky"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
	LogFile    string

	Deps Deps
}

// Deps builds the adapters commands talk to. Tests substitute fakes.
type Deps struct {
	NewSource      func(cfg *config.Config, logger *slog.Logger) engine.Source
	NewDestination func(cfg *config.Config, logger *slog.Logger) engine.Destination
	Clock          engine.Clock
	RunIDs         engine.RunIDGenerator
}

// DefaultDeps talks to the real Bluesky and Mastodon APIs.
func DefaultDeps() Deps {
	return Deps{
		NewSource: func(cfg *config.Config, logger *slog.Logger) engine.Source {
			return bluesky.New(bluesky.Config{
				Service:            cfg.Bluesky.Service,
				Handle:             cfg.Bluesky.Handle,
				Password:           cfg.Bluesky.Password,
				SkipQuotesOfOthers: cfg.Sync.SkipQuotesOfOthers,
				Logger:             logger,
			})
		},
		NewDestination: func(cfg *config.Config, logger *slog.Logger) engine.Destination {
			return mastodon.New(mastodon.Config{
				BaseURL:     cfg.Mastodon.BaseURL,
				AccessToken: cfg.Mastodon.AccessToken,
				Logger:      logger,
			})
		},
		Clock:  engine.SystemClock{},
		RunIDs: engine.UUIDv7Generator{},
	}
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the social-sync CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(DefaultDeps())
}

// NewRootCommandWith creates the root command with the given adapters.
func NewRootCommandWith(deps Deps) *cobra.Command {
	opts := &RootOptions{Deps: deps}

	cmd := &cobra.Command{
		Use:   "social-sync",
		Short: "Cross-post Bluesky posts to Mastodon",
		Long: `social-sync copies your own Bluesky posts to a Mastodon account.

Each run fetches recent posts, skips ones already handled, rewrites text and
embeds for Mastodon, preserves self-reply threads, and records every decision
in a local state file so re-running never double-posts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default "+config.DefaultFile+" if present)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "log file path (empty uses config)")

	// Add subcommands
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
