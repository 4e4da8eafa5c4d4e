package cli

import (
	"fmt"
	"time"

	"github.com/sifan077/GateLink/internal/app/repository"
	"github.com/spf13/cobra"
)

// NewPruneEventsCommand creates the 'prune-events' command.
func NewPruneEventsCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune-events",
		Short: "Delete audit events older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if olderThan <= 0 {
				olderThan = cfg.Links.AuditRetention
			}

			db, closeDB, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			cutoff := time.Now().Add(-olderThan)
			deleted, err := repository.NewLinkEventRepository(db).DeleteOlderThan(cmd.Context(), cutoff)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d events older than %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "retention window (defaults to links.audit_retention)")

	return cmd
}
