// Package main provides a small CLI utility to reset the application's
// database to a clean state. It is intended for local development and
// testing only and will permanently delete all data when run.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"prepapp/internal/config"
	"prepapp/internal/database"
	"prepapp/internal/observability"
)

// fatalIfErr logs the error with context and exits
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	os.Exit(1)
}

func main() {
	ctx := context.Background()

	// Load configuration first
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup observability (tracing/metrics/logging)
	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "reset-db")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := observability.ShutdownTracerProvider(context.TODO(), tp); err != nil {
			logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	fmt.Println("⚠️  DATABASE RESET UTILITY ⚠️")
	fmt.Println("=============================")
	fmt.Println("This will PERMANENTLY DELETE ALL DATA in the database!")
	fmt.Println("This includes:")
	fmt.Println("- The entire question bank")
	fmt.Println("- All per-user exposure history")
	fmt.Println("- All decks and flashcards")
	fmt.Println("- All quiz attempts")
	fmt.Println("")

	logger.Info(ctx, "Attempting to reset the database", map[string]interface{}{"service": "reset-db"})

	if cfg.Database.URL == "" {
		fatalIfErr(ctx, logger, "Database URL is empty", nil, map[string]interface{}{"error": "Database URL is empty. Cannot proceed with reset."})
	}

	// Print database info
	fmt.Println("📊 Database Information:")
	fmt.Printf("URL: %s\n", maskDatabaseURL(cfg.Database.URL))
	fmt.Println("")

	// Confirm with user
	if !confirmReset() {
		fmt.Println("Reset cancelled.")
		return
	}

	// Initialize database manager with logger
	dbManager := database.NewManager(logger)

	// Initialize database connection with configuration
	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to connect to database", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error(), "db_url": cfg.Database.URL})
		}
	}()

	// Drop everything owned by the application schema
	fmt.Println("🗑️  Dropping all tables...")
	logger.Info(ctx, "Dropping all tables", map[string]interface{}{"service": "reset-db"})

	if _, err := db.ExecContext(ctx, "DROP SCHEMA public CASCADE; CREATE SCHEMA public;"); err != nil {
		fatalIfErr(ctx, logger, "Failed to drop schema", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}

	// Recreate from migrations and schema.sql
	fmt.Println("🔄 Running database migrations...")
	logger.Info(ctx, "Running database migrations", map[string]interface{}{"service": "reset-db"})

	if err := dbManager.RunMigrations(db); err != nil {
		fatalIfErr(ctx, logger, "Failed to run migrations", err, map[string]interface{}{"db_url": cfg.Database.URL})
	}

	fmt.Println("✅ Database migrations completed successfully!")
	logger.Info(ctx, "Database migrations completed successfully", map[string]interface{}{"service": "reset-db"})
	fmt.Println("")
	fmt.Println("✅ Database is now ready to use!")
	fmt.Println("- Seed the question bank with: adm questions import <file.json>")
	fmt.Println("- Then start the server")
}

func confirmReset() bool {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("Are you sure you want to reset the database? (type 'yes' to confirm): ")
		response, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		response = strings.TrimSpace(strings.ToLower(response))

		switch response {
		case "yes":
			return true
		case "no", "":
			return false
		default:
			fmt.Println("Please type 'yes' to confirm or 'no' to cancel.")
		}
	}
}

func maskDatabaseURL(url string) string {
	// Simple masking for display purposes
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			return "postgres://***:***@" + parts[1]
		}
	}
	return url
}
