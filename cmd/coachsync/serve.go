package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"coachsync/internal/server"
)

// retrySweepLimit bounds how many backed-off athletes one sweep pass
// retries.
const retrySweepLimit = 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook and API server",
	Long: `Run the HTTP server: the Strava webhook endpoint, the calendar
and summary read APIs, the OAuth connect flow, and a background sweep
that retries backed-off sync intents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, db, err := openDeps()
		if err != nil {
			return err
		}
		defer db.Close()

		syncSvc, querySvc, oauthCfg := buildServices(cfg, db, logger)
		srv := server.New(db, syncSvc, querySvc, oauthCfg, cfg.Strava.WebhookVerifyToken, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Events debounced or backed off at webhook time are retried
		// here once their schedule allows.
		sweeper := cron.New()
		if err := sweeper.AddFunc("@every 2m", func() {
			syncSvc.SweepDue(ctx, time.Now(), retrySweepLimit)
		}); err != nil {
			return fmt.Errorf("scheduling retry sweep: %w", err)
		}
		sweeper.Start()
		defer sweeper.Stop()

		httpServer := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.Server.Addr)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
