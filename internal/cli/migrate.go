package cli

import (
	"fmt"

	"github.com/sifan077/GateLink/internal/app/model"
	infraPostgres "github.com/sifan077/GateLink/internal/infra/postgres"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// NewMigrateCommand creates the 'migrate' command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the links and link_events tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := opts.openDB()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := infraPostgres.AutoMigrate(cmd.Context(), db, model.Models()...); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func (o *RootOptions) openDB() (*gorm.DB, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := infraPostgres.NewGorm(cfg.Postgres, o.logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("access sql db: %w", err)
	}

	return db, func() { _ = sqlDB.Close() }, nil
}
