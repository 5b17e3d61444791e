//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"prepapp/internal/config"
	"prepapp/internal/database"
	"prepapp/internal/observability"

	"github.com/stretchr/testify/require"
)

// SharedTestDBSetup provides a clean, isolated database for each integration test
func SharedTestDBSetup(t *testing.T) *sql.DB {
	observabilityLogger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(observabilityLogger)

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)

	CleanupTestDatabase(db, t)

	return db
}

// CleanupTestDatabase truncates all application tables so each test starts empty
func CleanupTestDatabase(db *sql.DB, t *testing.T) {
	ctx := context.Background()

	// user_question_history and user_flashcards go first via CASCADE from
	// their parents, but truncating explicitly keeps the intent obvious.
	cleanupQueries := []string{
		"TRUNCATE TABLE user_question_history CASCADE",
		"TRUNCATE TABLE user_flashcards CASCADE",
		"TRUNCATE TABLE quiz_history CASCADE",
		"TRUNCATE TABLE decks CASCADE",
		"TRUNCATE TABLE question_bank CASCADE",
	}

	for _, query := range cleanupQueries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			t.Fatalf("cleanup query failed (%s): %v", query, err)
		}
	}
}

// testLogger returns a logger suitable for integration tests
func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}
