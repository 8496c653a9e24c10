package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertConnection inserts or updates a provider connection
func (db *DB) UpsertConnection(c *Connection) error {
	_, err := db.Exec(`
		INSERT INTO connections (
			athlete_id, provider, provider_athlete_id,
			access_token, refresh_token, expires_at, last_sync_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(athlete_id, provider) DO UPDATE SET
			provider_athlete_id = excluded.provider_athlete_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, c.AthleteID, c.Provider, c.ProviderAthleteID,
		c.AccessToken, c.RefreshToken, c.ExpiresAt.Unix(), formatTimePtr(c.LastSyncAt))
	return err
}

// GetConnection retrieves the connection for an athlete and provider
func (db *DB) GetConnection(athleteID int64, provider string) (*Connection, error) {
	row := db.QueryRow(`
		SELECT athlete_id, provider, provider_athlete_id,
			access_token, refresh_token, expires_at, last_sync_at
		FROM connections
		WHERE athlete_id = ? AND provider = ?
	`, athleteID, provider)
	return scanConnection(row)
}

// GetConnectionByProviderAthlete resolves a webhook owner id to the
// owning connection. Returns ErrConnectionNotFound for unknown owners.
func (db *DB) GetConnectionByProviderAthlete(provider string, providerAthleteID int64) (*Connection, error) {
	row := db.QueryRow(`
		SELECT athlete_id, provider, provider_athlete_id,
			access_token, refresh_token, expires_at, last_sync_at
		FROM connections
		WHERE provider = ? AND provider_athlete_id = ?
	`, provider, providerAthleteID)
	return scanConnection(row)
}

// ListConnections returns all connections for a provider
func (db *DB) ListConnections(provider string) ([]Connection, error) {
	rows, err := db.Query(`
		SELECT athlete_id, provider, provider_athlete_id,
			access_token, refresh_token, expires_at, last_sync_at
		FROM connections
		WHERE provider = ?
		ORDER BY athlete_id
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		var c Connection
		var expiresAt int64
		var lastSync *string
		err := rows.Scan(&c.AthleteID, &c.Provider, &c.ProviderAthleteID,
			&c.AccessToken, &c.RefreshToken, &expiresAt, &lastSync)
		if err != nil {
			return nil, err
		}
		c.ExpiresAt = time.Unix(expiresAt, 0)
		c.LastSyncAt, err = parseTimePtr(lastSync)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// UpdateConnectionTokens updates just the OAuth tokens, used by the
// refreshing token source.
func (db *DB) UpdateConnectionTokens(athleteID int64, provider, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := db.Exec(`
		UPDATE connections
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ? AND provider = ?
	`, accessToken, refreshToken, expiresAt.Unix(), athleteID, provider)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// SetConnectionWatermark advances the last-sync watermark. Called only
// after a batch has been fully persisted.
func (db *DB) SetConnectionWatermark(athleteID int64, provider string, at time.Time) error {
	result, err := db.Exec(`
		UPDATE connections
		SET last_sync_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE athlete_id = ? AND provider = ?
	`, formatTime(at), athleteID, provider)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row *sql.Row) (*Connection, error) {
	var c Connection
	var expiresAt int64
	var lastSync *string

	err := row.Scan(&c.AthleteID, &c.Provider, &c.ProviderAthleteID,
		&c.AccessToken, &c.RefreshToken, &expiresAt, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, err
	}

	c.ExpiresAt = time.Unix(expiresAt, 0)
	c.LastSyncAt, err = parseTimePtr(lastSync)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
