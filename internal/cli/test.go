package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/engine"
)

// ConnectionResult reports one platform check.
type ConnectionResult struct {
	Platform       string `json:"platform"`
	OK             bool   `json:"ok"`
	CharacterLimit int    `json:"character_limit,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check credentials for Bluesky and Mastodon",
		Long: `Log in to both platforms without fetching or publishing anything.

Exit codes:
  0 - Both logins succeeded
  1 - At least one login failed
  2 - Configuration error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnectionTest(rootOpts, cmd)
		},
	}
}

func runConnectionTest(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return WrapExitError(ExitCommandError, "missing credentials", err)
	}
	logger, err := newLogger(opts, cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	results := make([]ConnectionResult, 0, 2)

	bsky := ConnectionResult{Platform: "bluesky"}
	src := opts.Deps.NewSource(cfg, logger.Logger)
	if a, ok := src.(engine.Authenticator); ok {
		if err := a.Authenticate(ctx); err != nil {
			bsky.Error = err.Error()
		} else {
			bsky.OK = true
		}
	} else {
		bsky.OK = true
	}
	results = append(results, bsky)

	masto := ConnectionResult{Platform: "mastodon"}
	dst := opts.Deps.NewDestination(cfg, logger.Logger)
	if err := dst.Authenticate(ctx); err != nil {
		masto.Error = err.Error()
	} else {
		masto.OK = true
		if n, err := dst.CharacterLimit(ctx); err == nil {
			masto.CharacterLimit = n
		}
	}
	results = append(results, masto)

	if opts.Format == "json" {
		if err := formatter(opts, cmd).Success(results); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, r := range results {
			switch {
			case !r.OK:
				fmt.Fprintf(w, "✗ %s: %s\n", r.Platform, r.Error)
			case r.CharacterLimit > 0:
				fmt.Fprintf(w, "✓ %s: authenticated (limit %d characters)\n", r.Platform, r.CharacterLimit)
			default:
				fmt.Fprintf(w, "✓ %s: authenticated\n", r.Platform)
			}
		}
	}

	for _, r := range results {
		if !r.OK {
			return NewExitError(ExitFailure, "connection test failed")
		}
	}
	return nil
}
