package store

import (
	"database/sql"
	"errors"
)

// UpsertAthlete inserts or updates an athlete record
func (db *DB) UpsertAthlete(a *Athlete) error {
	_, err := db.Exec(`
		INSERT INTO athletes (id, name, timezone, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			timezone = excluded.timezone,
			updated_at = CURRENT_TIMESTAMP
	`, a.ID, a.Name, a.Timezone)
	return err
}

// GetAthlete retrieves an athlete by ID
func (db *DB) GetAthlete(id int64) (*Athlete, error) {
	var a Athlete
	err := db.QueryRow(`
		SELECT id, name, timezone FROM athletes WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAthleteTimezone updates just the athlete's IANA timezone
func (db *DB) SetAthleteTimezone(id int64, timezone string) error {
	result, err := db.Exec(`
		UPDATE athletes SET timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, timezone, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAthleteNotFound
	}
	return nil
}
