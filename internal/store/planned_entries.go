package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// CreatePlannedEntry inserts a coach-authored session
func (db *DB) CreatePlannedEntry(e *PlannedEntry) error {
	if e.Status == "" {
		e.Status = StatusPlanned
	}
	_, err := db.Exec(`
		INSERT INTO planned_entries (
			id, athlete_id, day, start_time, discipline,
			duration_minutes, distance_meters, status, deleted, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, e.ID, e.AthleteID, e.Day, e.StartTime, e.Discipline,
		e.DurationMinutes, e.DistanceMeters, string(e.Status), boolToInt(e.Deleted))
	return err
}

// GetPlannedEntry retrieves a planned entry by ID, including
// soft-deleted ones (the audit trail is part of the contract).
func (db *DB) GetPlannedEntry(id string) (*PlannedEntry, error) {
	row := db.QueryRow(`
		SELECT id, athlete_id, day, start_time, discipline,
			duration_minutes, distance_meters, status, deleted
		FROM planned_entries
		WHERE id = ?
	`, id)
	return scanPlannedEntry(row)
}

// ListPlannedEntriesForDays returns live entries for an athlete on the
// given day keys, ordered by day then id for deterministic matching.
func (db *DB) ListPlannedEntriesForDays(athleteID int64, days []string) ([]PlannedEntry, error) {
	if len(days) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, athlete_id, day, start_time, discipline,
			duration_minutes, distance_meters, status, deleted
		FROM planned_entries
		WHERE athlete_id = ? AND deleted = 0 AND day IN (`
	args := make([]interface{}, 0, len(days)+1)
	args = append(args, athleteID)
	for i, d := range days {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, d)
	}
	query += `) ORDER BY day, id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlannedEntries(rows)
}

// ListPlannedEntriesInRange returns live entries for [fromDay, toDay]
// inclusive, ordered by day then start time.
func (db *DB) ListPlannedEntriesInRange(athleteID int64, fromDay, toDay string) ([]PlannedEntry, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, day, start_time, discipline,
			duration_minutes, distance_meters, status, deleted
		FROM planned_entries
		WHERE athlete_id = ? AND deleted = 0 AND day >= ? AND day <= ?
		ORDER BY day, start_time, id
	`, athleteID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlannedEntries(rows)
}

// UpdatePlannedEntryStatus transitions an entry's lifecycle status
func (db *DB) UpdatePlannedEntryStatus(id string, status Status) error {
	result, err := db.Exec(`
		UPDATE planned_entries
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted = 0
	`, string(status), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlannedEntryNotFound
	}
	return nil
}

// MarkMatched transitions an entry to a synced-completed status only
// if it is still matchable. Returns false when another sync run (or a
// coach edit) consumed the entry first.
func (db *DB) MarkMatched(id string, status Status) (bool, error) {
	result, err := db.Exec(`
		UPDATE planned_entries
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted = 0 AND status IN ('PLANNED', 'MODIFIED')
	`, string(status), id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SoftDeletePlannedEntry marks an entry deleted without removing the
// row, preserving the audit trail.
func (db *DB) SoftDeletePlannedEntry(id string) error {
	result, err := db.Exec(`
		UPDATE planned_entries
		SET deleted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPlannedEntryNotFound
	}
	return nil
}

func scanPlannedEntry(row *sql.Row) (*PlannedEntry, error) {
	var e PlannedEntry
	var status string
	var deleted int

	err := row.Scan(&e.ID, &e.AthleteID, &e.Day, &e.StartTime, &e.Discipline,
		&e.DurationMinutes, &e.DistanceMeters, &status, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlannedEntryNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Status = Status(status)
	e.Deleted = deleted == 1
	return &e, nil
}

func scanPlannedEntries(rows *sql.Rows) ([]PlannedEntry, error) {
	var entries []PlannedEntry
	for rows.Next() {
		var e PlannedEntry
		var status string
		var deleted int

		err := rows.Scan(&e.ID, &e.AthleteID, &e.Day, &e.StartTime, &e.Discipline,
			&e.DurationMinutes, &e.DistanceMeters, &status, &deleted)
		if err != nil {
			return nil, fmt.Errorf("scanning planned entry: %w", err)
		}

		e.Status = Status(status)
		e.Deleted = deleted == 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
