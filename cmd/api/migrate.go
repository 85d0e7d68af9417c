// AngelaMos | 2026
// migrate.go

package main

import (
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(
		migrateStep(configPath, core.MigrateUp, "Apply all pending migrations"),
		migrateStep(configPath, core.MigrateDown, "Roll back the latest migration"),
	)

	return cmd
}

func migrateStep(
	configPath *string,
	direction core.MigrateDirection,
	short string,
) *cobra.Command {
	return &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := setupLogger(cfg.Log)

			if err := core.Migrate(cfg.Database.URL, direction); err != nil {
				return err
			}

			logger.Info("migrations applied", "direction", direction)
			return nil
		},
	}
}
