package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrAthleteNotFound is returned when an athlete doesn't exist
var ErrAthleteNotFound = errors.New("athlete not found")

// ErrConnectionNotFound is returned when no provider connection is stored
var ErrConnectionNotFound = errors.New("connection not found")

// ErrPlannedEntryNotFound is returned when a planned entry doesn't exist
var ErrPlannedEntryNotFound = errors.New("planned entry not found")

// ErrCompletedActivityNotFound is returned when a completion doesn't exist
var ErrCompletedActivityNotFound = errors.New("completed activity not found")

// ErrSyncIntentNotFound is returned when no ledger row exists for an athlete
var ErrSyncIntentNotFound = errors.New("sync intent not found")

// DB wraps the SQLite connection and provides the data access layer
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating it and running
// migrations if necessary.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &DB{db}, nil
}

// DefaultPath returns the default database location, ~/.coachsync/data.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".coachsync", "data.db"), nil
}

// Timestamps are stored as RFC3339 UTC text so lexicographic SQL
// comparisons agree with chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
