package cli

import (
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Long: `Print the configuration after merging the config file, environment
variables and defaults. Passwords and tokens are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return formatter(opts, cmd).Success(cfg.Redacted())
			}
			out, err := cfg.YAML()
			if err != nil {
				return WrapExitError(ExitCommandError, "rendering configuration", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
