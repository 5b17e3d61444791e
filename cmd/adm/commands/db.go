// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"os"

	"prepapp/internal/database"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(logger *observability.Logger, dbManager *database.Manager, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the prep platform.

Available commands:
  stats     - Show database statistics
  migrate   - Apply pending schema migrations`,
	}

	dbCmd.AddCommand(statsCmd(logger, db, databaseURL))
	dbCmd.AddCommand(migrateCmd(logger, dbManager, db, databaseURL))

	return dbCmd
}

// statsCmd returns the stats command
func statsCmd(logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show database statistics including question bank, deck and history counts.`,
		RunE:  runStats(logger, db, databaseURL),
	}
}

// migrateCmd returns the migrate command
func migrateCmd(logger *observability.Logger, dbManager *database.Manager, db *sql.DB, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply the application schema and any pending migrations to the configured database.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("PREPAPP_CONFIG_FILE"), "database_url": maskDatabaseURL(databaseURL), "database": getDatabaseInfo(db)})

			if err := dbManager.RunMigrations(db); err != nil {
				logger.Error(ctx, "Migrations failed", err, map[string]interface{}{})
				return contextutils.WrapErrorf(err, "migrations failed")
			}

			logger.Info(ctx, "Migrations applied successfully", map[string]interface{}{})
			return nil
		},
	}
}

// runStats returns a function that shows database statistics
func runStats(logger *observability.Logger, db *sql.DB, databaseURL string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("PREPAPP_CONFIG_FILE"), "database_url": maskDatabaseURL(databaseURL), "database": getDatabaseInfo(db)})

		stats := map[string]interface{}{"database": "PostgreSQL", "status": "Connected"}
		counts := map[string]string{
			"questions":  "SELECT COUNT(*) FROM question_bank",
			"decks":      "SELECT COUNT(*) FROM decks",
			"flashcards": "SELECT COUNT(*) FROM user_flashcards",
			"attempts":   "SELECT COUNT(*) FROM quiz_history",
		}
		for name, query := range counts {
			var count int
			if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
				logger.Error(ctx, "Failed to get database statistics", err, map[string]interface{}{"table": name})
				return contextutils.WrapErrorf(err, "failed to count %s", name)
			}
			stats[name] = count
		}

		logger.Info(ctx, "Database statistics", stats)
		return nil
	}
}
