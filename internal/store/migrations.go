package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Athletes (identity + timezone used by every local-day computation)
		`CREATE TABLE IF NOT EXISTS athletes (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT '',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Provider connections (tokens + last-sync watermark)
		`CREATE TABLE IF NOT EXISTS connections (
			athlete_id INTEGER NOT NULL,
			provider TEXT NOT NULL,
			provider_athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			last_sync_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (athlete_id, provider),
			FOREIGN KEY (athlete_id) REFERENCES athletes(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_provider_athlete
			ON connections(provider, provider_athlete_id)`,

		// Planned calendar entries (soft-deleted, never removed)
		`CREATE TABLE IF NOT EXISTS planned_entries (
			id TEXT PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			day TEXT NOT NULL,
			start_time TEXT NOT NULL DEFAULT '',
			discipline TEXT NOT NULL DEFAULT '',
			duration_minutes INTEGER,
			distance_meters REAL,
			status TEXT NOT NULL DEFAULT 'PLANNED',
			deleted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (athlete_id) REFERENCES athletes(id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_planned_entries_athlete_day
			ON planned_entries(athlete_id, day)`,

		// Completed activities; (athlete_id, source, external_id) is the
		// idempotency key for synced completions
		`CREATE TABLE IF NOT EXISTS completed_activities (
			id TEXT PRIMARY KEY,
			athlete_id INTEGER NOT NULL,
			planned_entry_id TEXT,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			discipline TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			duration_minutes INTEGER,
			distance_meters REAL,
			match_day_diff INTEGER NOT NULL DEFAULT 0,
			metrics TEXT NOT NULL DEFAULT '',
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (athlete_id) REFERENCES athletes(id),
			FOREIGN KEY (planned_entry_id) REFERENCES planned_entries(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_completed_external
			ON completed_activities(athlete_id, source, external_id)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_started
			ON completed_activities(athlete_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_completed_planned_entry
			ON completed_activities(planned_entry_id)`,

		// Sync intent ledger (one row per athlete, reused forever)
		`CREATE TABLE IF NOT EXISTS sync_intents (
			athlete_id INTEGER PRIMARY KEY,
			pending INTEGER NOT NULL DEFAULT 0,
			last_event_at TEXT NOT NULL DEFAULT '',
			last_activity_id INTEGER,
			locked_until TEXT,
			last_attempt_at TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			next_attempt_at TEXT,
			last_error TEXT NOT NULL DEFAULT '',
			last_success_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (athlete_id) REFERENCES athletes(id)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
