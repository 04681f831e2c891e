package cli

import (
	"github.com/spf13/cobra"

	"github.com/hossain-khan/social-sync/internal/config"
	"github.com/hossain-khan/social-sync/internal/logging"
)

// loadConfig resolves configuration with the command's changed flags on top.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs go to stderr so JSON output on
// stdout stays parseable.
func newLogger(opts *RootOptions, cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: opts.Verbose,
		Format:  cfg.Log.Format,
		File:    cfg.Log.File,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configuring logging", err)
	}
	return logger, nil
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
