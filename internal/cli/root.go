package cli

import (
	"fmt"

	"github.com/sifan077/GateLink/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds state shared by every subcommand.
type RootOptions struct {
	Verbose bool

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
	logger     *zap.Logger
}

// NewRootCommand creates the gatelinkctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{loadConfig: config.Load}

	cmd := &cobra.Command{
		Use:           "gatelinkctl",
		Short:         "Operate a GateLink deployment",
		Long:          "Administrative tasks for GateLink: schema migration, API tokens and audit housekeeping.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = zap.NewNop()
			if opts.Verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("build logger: %w", err)
				}
				opts.logger = l
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewPruneEventsCommand(opts))

	return cmd
}
