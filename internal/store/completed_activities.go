package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertCompletedActivity inserts or updates a completion keyed by
// (athlete_id, source, external_id). The upsert is first-match-wins:
// once a row is linked to a planned entry, a later re-sync refreshes
// the measured fields but never relinks or changes match_day_diff.
// Returns the stored row id.
func (db *DB) UpsertCompletedActivity(a *CompletedActivity) (string, error) {
	metrics, err := encodeMetrics(a.Metrics)
	if err != nil {
		return "", err
	}

	_, err = db.Exec(`
		INSERT INTO completed_activities (
			id, athlete_id, planned_entry_id, source, external_id, discipline,
			started_at, duration_minutes, distance_meters, match_day_diff,
			metrics, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id, source, external_id) DO UPDATE SET
			planned_entry_id = COALESCE(completed_activities.planned_entry_id, excluded.planned_entry_id),
			match_day_diff = CASE
				WHEN completed_activities.planned_entry_id IS NULL THEN excluded.match_day_diff
				ELSE completed_activities.match_day_diff
			END,
			discipline = excluded.discipline,
			started_at = excluded.started_at,
			duration_minutes = excluded.duration_minutes,
			distance_meters = excluded.distance_meters,
			metrics = excluded.metrics,
			updated_at = CURRENT_TIMESTAMP
	`, a.ID, a.AthleteID, a.PlannedEntryID, a.Source, a.ExternalID, a.Discipline,
		formatTime(a.StartedAt), a.DurationMinutes, a.DistanceMeters, a.MatchDayDiff,
		metrics)
	if err != nil {
		return "", err
	}

	// The insert may have collapsed onto an existing row with a
	// different id; report the authoritative one.
	var id string
	err = db.QueryRow(`
		SELECT id FROM completed_activities
		WHERE athlete_id = ? AND source = ? AND external_id = ?
	`, a.AthleteID, a.Source, a.ExternalID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetCompletedActivityByExternalID retrieves a completion by its
// idempotency key.
func (db *DB) GetCompletedActivityByExternalID(athleteID int64, source, externalID string) (*CompletedActivity, error) {
	row := db.QueryRow(`
		SELECT id, athlete_id, planned_entry_id, source, external_id, discipline,
			started_at, duration_minutes, distance_meters, match_day_diff, metrics
		FROM completed_activities
		WHERE athlete_id = ? AND source = ? AND external_id = ?
	`, athleteID, source, externalID)
	return scanCompletedActivity(row)
}

// ListCompletedActivitiesInWindow returns completions whose start
// instant falls in [startUTC, endUTC), newest first.
func (db *DB) ListCompletedActivitiesInWindow(athleteID int64, startUTC, endUTC time.Time) ([]CompletedActivity, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, planned_entry_id, source, external_id, discipline,
			started_at, duration_minutes, distance_meters, match_day_diff, metrics
		FROM completed_activities
		WHERE athlete_id = ? AND started_at >= ? AND started_at < ?
		ORDER BY started_at DESC
	`, athleteID, formatTime(startUTC), formatTime(endUTC))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCompletedActivities(rows)
}

// ListCompletedActivitiesForEntry returns the completions linked to a
// planned entry, newest first. The first row is authoritative for
// display and aggregation.
func (db *DB) ListCompletedActivitiesForEntry(plannedEntryID string) ([]CompletedActivity, error) {
	rows, err := db.Query(`
		SELECT id, athlete_id, planned_entry_id, source, external_id, discipline,
			started_at, duration_minutes, distance_meters, match_day_diff, metrics
		FROM completed_activities
		WHERE planned_entry_id = ?
		ORDER BY started_at DESC
	`, plannedEntryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCompletedActivities(rows)
}

// CountCompletedActivities returns the number of completions stored
// for an athlete.
func (db *DB) CountCompletedActivities(athleteID int64) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM completed_activities WHERE athlete_id = ?
	`, athleteID).Scan(&count)
	return count, err
}

func scanCompletedActivity(row *sql.Row) (*CompletedActivity, error) {
	var a CompletedActivity
	var startedAt, metrics string

	err := row.Scan(&a.ID, &a.AthleteID, &a.PlannedEntryID, &a.Source, &a.ExternalID,
		&a.Discipline, &startedAt, &a.DurationMinutes, &a.DistanceMeters, &a.MatchDayDiff, &metrics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompletedActivityNotFound
	}
	if err != nil {
		return nil, err
	}

	a.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	a.Metrics = decodeMetrics(metrics)
	return &a, nil
}

func scanCompletedActivities(rows *sql.Rows) ([]CompletedActivity, error) {
	var activities []CompletedActivity
	for rows.Next() {
		var a CompletedActivity
		var startedAt, metrics string

		err := rows.Scan(&a.ID, &a.AthleteID, &a.PlannedEntryID, &a.Source, &a.ExternalID,
			&a.Discipline, &startedAt, &a.DurationMinutes, &a.DistanceMeters, &a.MatchDayDiff, &metrics)
		if err != nil {
			return nil, err
		}

		a.StartedAt, err = parseTime(startedAt)
		if err != nil {
			return nil, err
		}
		a.Metrics = decodeMetrics(metrics)
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
