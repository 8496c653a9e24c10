package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"coachsync/internal/auth"
	"coachsync/internal/config"
	"coachsync/internal/service"
	"coachsync/internal/store"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "coachsync",
	Short: "Training calendar sync service",
	Long: `coachsync keeps coached training calendars in step with what
athletes actually do on Strava.

Coaches plan sessions on local calendar days; athletes record workouts
wherever they are. coachsync ingests provider webhooks, matches
activities to planned sessions across timezone and midnight boundaries,
and serves resolved calendar and summary views.

GETTING STARTED:

  1. Create a config file and fill in your Strava API credentials:
     coachsync config init

  2. Register an athlete and plan a session:
     coachsync athlete add --id 42 --name "Jo" --timezone Australia/Brisbane
     coachsync plan add --athlete 42 --day 2026-02-05 --time 23:00 --discipline run --minutes 35

  3. Run the server (webhook endpoint, read APIs, retry sweep):
     coachsync serve

  4. Or sync on demand:
     coachsync sync --athlete 42 --force-days 14`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "",
		"config file path (default ~/.coachsync/config.json)")
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// openDeps loads config and opens the database.
func openDeps() (*config.Config, *store.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func buildServices(cfg *config.Config, db *store.DB, logger *slog.Logger) (*service.SyncService, *service.QueryService, *oauth2.Config) {
	oauthCfg := auth.NewOAuthConfig(auth.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  cfg.Server.PublicURL + "/connect/callback",
	})
	fetcher := service.NewStravaFetcher(db, oauthCfg)
	syncSvc := service.NewSyncService(db, fetcher, logger, cfg.Sync.DefaultTimezone)
	querySvc := service.NewQueryService(db, cfg.Sync.DefaultTimezone)
	return syncSvc, querySvc, oauthCfg
}
