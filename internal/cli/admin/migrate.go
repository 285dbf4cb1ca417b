package admin

import (
	"fmt"

	"github.com/deldesir/gateway/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending migrations, or roll back with --down",
		RunE:  runMigrate,
	}

	cmd.Flags().String("dir", database.DefaultMigrationsDir, "Migrations directory")
	cmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.HasDatabase() {
		return fmt.Errorf("GATEWAY_DATABASE_URL is required")
	}

	dir, _ := cmd.Flags().GetString("dir")
	down, _ := cmd.Flags().GetInt("down")

	if down > 0 {
		if err := database.MigrateDown(cfg.DatabaseURL, dir, down); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", down)
		return nil
	}

	if err := database.Migrate(cfg.DatabaseURL, dir); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}
