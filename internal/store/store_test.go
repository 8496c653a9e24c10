package store

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates an in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	db := &DB{sqlDB}

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Insert a test athlete for foreign key constraints
	if err := db.UpsertAthlete(&Athlete{ID: 42, Name: "Test Athlete", Timezone: "America/New_York"}); err != nil {
		sqlDB.Close()
		t.Fatalf("Failed to insert test athlete: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func intPtr(v int) *int             { return &v }
func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }
func strPtr(v string) *string       { return &v }
