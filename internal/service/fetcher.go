package service

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"coachsync/internal/auth"
	"coachsync/internal/store"
	"coachsync/internal/strava"
)

// stravaFetcher implements Fetcher against the live Strava API. Each
// call builds a client from the connection's stored tokens; refreshed
// tokens are persisted back to the connection row. All clients share
// one rate limiter because the upstream quota is per application.
type stravaFetcher struct {
	db      *store.DB
	oauth   *oauth2.Config
	limiter *strava.RateLimiter
}

// NewStravaFetcher creates the production fetcher.
func NewStravaFetcher(db *store.DB, oauthCfg *oauth2.Config) Fetcher {
	return &stravaFetcher{
		db:      db,
		oauth:   oauthCfg,
		limiter: strava.NewRateLimiter(),
	}
}

func (f *stravaFetcher) client(conn *store.Connection) *strava.Client {
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.ExpiresAt,
	}
	ts := auth.NewTokenSource(f.oauth, token, func(t *oauth2.Token) error {
		return f.db.UpdateConnectionTokens(
			conn.AthleteID, conn.Provider, t.AccessToken, t.RefreshToken, t.Expiry)
	})
	return strava.NewClient(ts, f.limiter)
}

func (f *stravaFetcher) ActivitiesAfter(ctx context.Context, conn *store.Connection, after time.Time) ([]strava.Activity, error) {
	return f.client(conn).GetAllActivities(ctx, after)
}

func (f *stravaFetcher) Activity(ctx context.Context, conn *store.Connection, id int64) (*strava.Activity, error) {
	return f.client(conn).GetActivity(ctx, id)
}
