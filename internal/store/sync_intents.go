package store

import (
	"database/sql"
	"errors"
	"time"
)

// maxStoredErrorLen bounds the last_error column so provider error
// bodies don't bloat the ledger.
const maxStoredErrorLen = 500

// RecordSyncEvent upserts the athlete's ledger row on webhook receipt:
// marks it pending and advances last_event_at only if the event is
// newer. Safe under concurrent deliveries; applying events out of
// order converges to the same row.
func (db *DB) RecordSyncEvent(athleteID int64, eventAt time.Time, activityIDHint *int64) error {
	_, err := db.Exec(`
		INSERT INTO sync_intents (athlete_id, pending, last_event_at, last_activity_id, updated_at)
		VALUES (?, 1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id) DO UPDATE SET
			pending = 1,
			last_event_at = MAX(sync_intents.last_event_at, excluded.last_event_at),
			last_activity_id = COALESCE(excluded.last_activity_id, sync_intents.last_activity_id),
			updated_at = CURRENT_TIMESTAMP
	`, athleteID, formatTime(eventAt), activityIDHint)
	return err
}

// TryAcquireSyncLease atomically claims the athlete's ledger row. The
// claim succeeds only when the row is unlocked, outside the debounce
// window, and not scheduled for a future backoff attempt. This is a
// single conditional UPDATE, not read-then-write: of two concurrent
// callers exactly one sees rows-affected 1.
func (db *DB) TryAcquireSyncLease(athleteID int64, now time.Time, leaseDuration, debounceWindow time.Duration) (bool, error) {
	nowStr := formatTime(now)
	result, err := db.Exec(`
		UPDATE sync_intents
		SET locked_until = ?,
			last_attempt_at = ?,
			attempts = attempts + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ?
			AND (locked_until IS NULL OR locked_until <= ?)
			AND (last_attempt_at IS NULL OR last_attempt_at <= ?)
			AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	`, formatTime(now.Add(leaseDuration)), nowStr,
		athleteID, nowStr, formatTime(now.Add(-debounceWindow)), nowStr)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ReleaseSyncSuccess releases the lease after a clean run: clears
// pending, the lock, any backoff schedule and error, and resets the
// attempt counter.
func (db *DB) ReleaseSyncSuccess(athleteID int64, now time.Time) error {
	result, err := db.Exec(`
		UPDATE sync_intents
		SET pending = 0,
			attempts = 0,
			locked_until = NULL,
			next_attempt_at = NULL,
			last_error = '',
			last_success_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ?
	`, formatTime(now), athleteID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSyncIntentNotFound
	}
	return nil
}

// ReleaseSyncRetryable releases the lease after a retryable failure:
// the row stays pending, the next attempt is pushed out by
// backoffDelay, and a truncated error message is recorded for the UI.
func (db *DB) ReleaseSyncRetryable(athleteID int64, now time.Time, backoffDelay time.Duration, errMsg string) error {
	if len(errMsg) > maxStoredErrorLen {
		errMsg = errMsg[:maxStoredErrorLen]
	}
	result, err := db.Exec(`
		UPDATE sync_intents
		SET pending = 1,
			locked_until = NULL,
			next_attempt_at = ?,
			last_error = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ?
	`, formatTime(now.Add(backoffDelay)), errMsg, athleteID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSyncIntentNotFound
	}
	return nil
}

// GetSyncIntent retrieves an athlete's ledger row
func (db *DB) GetSyncIntent(athleteID int64) (*SyncIntent, error) {
	row := db.QueryRow(`
		SELECT athlete_id, pending, last_event_at, last_activity_id,
			locked_until, last_attempt_at, attempts, next_attempt_at,
			last_error, last_success_at
		FROM sync_intents
		WHERE athlete_id = ?
	`, athleteID)
	return scanSyncIntent(row)
}

// ListDueSyncIntents returns pending, unlocked intents whose backoff
// schedule (if any) has elapsed. The retry sweep feeds these back
// through the normal lease path.
func (db *DB) ListDueSyncIntents(now time.Time, limit int) ([]SyncIntent, error) {
	nowStr := formatTime(now)
	rows, err := db.Query(`
		SELECT athlete_id, pending, last_event_at, last_activity_id,
			locked_until, last_attempt_at, attempts, next_attempt_at,
			last_error, last_success_at
		FROM sync_intents
		WHERE pending = 1
			AND (locked_until IS NULL OR locked_until <= ?)
			AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY last_event_at
		LIMIT ?
	`, nowStr, nowStr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []SyncIntent
	for rows.Next() {
		si, err := scanSyncIntentRow(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, *si)
	}
	return intents, rows.Err()
}

func scanSyncIntent(row *sql.Row) (*SyncIntent, error) {
	var si SyncIntent
	var pending int
	var lastEventAt string
	var lockedUntil, lastAttemptAt, nextAttemptAt, lastSuccessAt *string

	err := row.Scan(&si.AthleteID, &pending, &lastEventAt, &si.LastActivityID,
		&lockedUntil, &lastAttemptAt, &si.Attempts, &nextAttemptAt,
		&si.LastError, &lastSuccessAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSyncIntentNotFound
	}
	if err != nil {
		return nil, err
	}
	return finishSyncIntent(&si, pending, lastEventAt, lockedUntil, lastAttemptAt, nextAttemptAt, lastSuccessAt)
}

func scanSyncIntentRow(rows *sql.Rows) (*SyncIntent, error) {
	var si SyncIntent
	var pending int
	var lastEventAt string
	var lockedUntil, lastAttemptAt, nextAttemptAt, lastSuccessAt *string

	err := rows.Scan(&si.AthleteID, &pending, &lastEventAt, &si.LastActivityID,
		&lockedUntil, &lastAttemptAt, &si.Attempts, &nextAttemptAt,
		&si.LastError, &lastSuccessAt)
	if err != nil {
		return nil, err
	}
	return finishSyncIntent(&si, pending, lastEventAt, lockedUntil, lastAttemptAt, nextAttemptAt, lastSuccessAt)
}

func finishSyncIntent(si *SyncIntent, pending int, lastEventAt string, lockedUntil, lastAttemptAt, nextAttemptAt, lastSuccessAt *string) (*SyncIntent, error) {
	si.Pending = pending == 1

	var err error
	if lastEventAt != "" {
		si.LastEventAt, err = parseTime(lastEventAt)
		if err != nil {
			return nil, err
		}
	}
	if si.LockedUntil, err = parseTimePtr(lockedUntil); err != nil {
		return nil, err
	}
	if si.LastAttemptAt, err = parseTimePtr(lastAttemptAt); err != nil {
		return nil, err
	}
	if si.NextAttemptAt, err = parseTimePtr(nextAttemptAt); err != nil {
		return nil, err
	}
	if si.LastSuccessAt, err = parseTimePtr(lastSuccessAt); err != nil {
		return nil, err
	}
	return si, nil
}
