package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"coachsync/internal/localday"
	"coachsync/internal/match"
	"coachsync/internal/store"
	"coachsync/internal/strava"
)

// Fetcher abstracts the provider API so sync runs are testable without
// network access.
type Fetcher interface {
	ActivitiesAfter(ctx context.Context, conn *store.Connection, after time.Time) ([]strava.Activity, error)
	Activity(ctx context.Context, conn *store.Connection, id int64) (*strava.Activity, error)
}

// SyncService orchestrates pulling provider activities, matching them
// against the planned calendar, and persisting completions.
type SyncService struct {
	db          *store.DB
	fetcher     Fetcher
	logger      *slog.Logger
	defaultZone string
}

// NewSyncService creates a sync orchestrator. defaultZone is used for
// athletes with no stored timezone.
func NewSyncService(db *store.DB, fetcher Fetcher, logger *slog.Logger, defaultZone string) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		db:          db,
		fetcher:     fetcher,
		logger:      logger,
		defaultZone: defaultZone,
	}
}

// SyncOptions tune one sync run.
type SyncOptions struct {
	// ForceWindowDays re-fetches the last N days regardless of the
	// watermark. The watermark is not advanced on forced runs.
	ForceWindowDays int

	// SingleActivityID fetches exactly one activity instead of the
	// incremental feed; the webhook fast path uses this.
	SingleActivityID int64
}

// ConnectionError is one connection's failure within a multi-athlete
// run. Failures never abort the run; they are collected here.
type ConnectionError struct {
	AthleteID   int64
	Provider    string
	RateLimited bool
	Err         error
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("athlete %d (%s): %v", e.AthleteID, e.Provider, e.Err)
}

func (e ConnectionError) Unwrap() error { return e.Err }

// SyncSummary reports what one run did.
type SyncSummary struct {
	Connections       int
	ActivitiesFetched int
	ActivitiesStored  int
	Matched           int
	Errors            []ConnectionError
}

// RateLimited reports whether any connection failed on provider quota.
func (s *SyncSummary) RateLimited() bool {
	for _, e := range s.Errors {
		if e.RateLimited {
			return true
		}
	}
	return false
}

// ErrorMessage joins the collected errors for ledger storage.
func (s *SyncSummary) ErrorMessage() string {
	msgs := make([]string, len(s.Errors))
	for i, e := range s.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// SyncAll runs a sync across every connection. A failing connection is
// recorded and skipped; the others proceed.
func (s *SyncService) SyncAll(ctx context.Context, opts SyncOptions, now time.Time) *SyncSummary {
	summary := &SyncSummary{}

	conns, err := s.db.ListConnections(store.SourceStrava)
	if err != nil {
		summary.Errors = append(summary.Errors, ConnectionError{
			Provider: store.SourceStrava,
			Err:      fmt.Errorf("listing connections: %w", err),
		})
		return summary
	}

	for i := range conns {
		if ctx.Err() != nil {
			break
		}
		s.syncConnection(ctx, &conns[i], opts, now, summary)
	}
	return summary
}

// SyncAthlete runs a sync for one athlete's connection.
func (s *SyncService) SyncAthlete(ctx context.Context, athleteID int64, opts SyncOptions, now time.Time) *SyncSummary {
	summary := &SyncSummary{}

	conn, err := s.db.GetConnection(athleteID, store.SourceStrava)
	if err != nil {
		summary.Errors = append(summary.Errors, ConnectionError{
			AthleteID: athleteID,
			Provider:  store.SourceStrava,
			Err:       err,
		})
		return summary
	}

	s.syncConnection(ctx, conn, opts, now, summary)
	return summary
}

func (s *SyncService) syncConnection(ctx context.Context, conn *store.Connection, opts SyncOptions, now time.Time, summary *SyncSummary) {
	summary.Connections++
	zone := s.zoneFor(conn.AthleteID)

	var activities []strava.Activity
	var err error
	if opts.SingleActivityID != 0 {
		var a *strava.Activity
		a, err = s.fetcher.Activity(ctx, conn, opts.SingleActivityID)
		if a != nil {
			activities = []strava.Activity{*a}
		}
	} else {
		activities, err = s.fetcher.ActivitiesAfter(ctx, conn, s.fetchAfter(conn, opts, now))
	}
	if err != nil {
		s.recordFailure(summary, conn, fmt.Errorf("fetching activities: %w", err))
		return
	}
	summary.ActivitiesFetched += len(activities)

	clean := true
	stored, linked := 0, 0
	for _, a := range activities {
		matched, err := s.applyActivity(conn.AthleteID, zone, a)
		if err != nil {
			clean = false
			s.recordFailure(summary, conn, fmt.Errorf("activity %d: %w", a.ID, err))
			continue
		}
		stored++
		if matched {
			linked++
		}
	}
	summary.ActivitiesStored += stored
	summary.Matched += linked

	// The watermark only advances after a clean incremental batch so a
	// partial failure is retried from the same point. Forced and
	// single-activity runs never move it.
	if clean && opts.ForceWindowDays == 0 && opts.SingleActivityID == 0 {
		if err := s.db.SetConnectionWatermark(conn.AthleteID, conn.Provider, now); err != nil {
			s.recordFailure(summary, conn, fmt.Errorf("advancing watermark: %w", err))
			return
		}
	}

	s.logger.Info("synced connection",
		"athlete_id", conn.AthleteID,
		"fetched", len(activities),
		"stored", stored,
		"matched", linked)
}

func (s *SyncService) fetchAfter(conn *store.Connection, opts SyncOptions, now time.Time) time.Time {
	if opts.ForceWindowDays > 0 {
		return now.AddDate(0, 0, -opts.ForceWindowDays)
	}
	if conn.LastSyncAt != nil {
		return conn.LastSyncAt.Add(-watermarkOverlap)
	}
	return now.AddDate(0, 0, -DefaultWindowDays)
}

func (s *SyncService) recordFailure(summary *SyncSummary, conn *store.Connection, err error) {
	ce := ConnectionError{
		AthleteID:   conn.AthleteID,
		Provider:    conn.Provider,
		RateLimited: strava.IsRateLimited(err),
		Err:         err,
	}
	s.logger.Error("sync connection failed",
		"athlete_id", conn.AthleteID,
		"rate_limited", ce.RateLimited,
		"error", err)
	summary.Errors = append(summary.Errors, ce)
}

// applyActivity matches and persists one provider activity. Reports
// whether a planned entry was newly consumed.
func (s *SyncService) applyActivity(athleteID int64, zone string, a strava.Activity) (bool, error) {
	act := match.Activity{
		ExternalID:  strconv.FormatInt(a.ID, 10),
		Source:      store.SourceStrava,
		StartedAt:   a.StartDate.UTC(),
		Discipline:  a.Discipline(),
		Provisional: a.Manual,
	}
	if a.MovingTime > 0 {
		minutes := int(math.Round(float64(a.MovingTime) / 60))
		act.DurationMinutes = &minutes
	}
	if a.Distance > 0 {
		d := a.Distance
		act.DistanceMeters = &d
	}

	// Linking is first-match-wins, so skip the candidate search when
	// this external id is already stored with a link.
	existing, err := s.db.GetCompletedActivityByExternalID(athleteID, act.Source, act.ExternalID)
	if err != nil && !errors.Is(err, store.ErrCompletedActivityNotFound) {
		return false, err
	}

	completed := &store.CompletedActivity{
		ID:              uuid.NewString(),
		AthleteID:       athleteID,
		Source:          act.Source,
		ExternalID:      act.ExternalID,
		Discipline:      act.Discipline,
		StartedAt:       act.StartedAt,
		DurationMinutes: act.DurationMinutes,
		DistanceMeters:  act.DistanceMeters,
		Metrics:         metricsFromStrava(a),
	}

	matched := false
	if existing == nil || existing.PlannedEntryID == nil {
		localKey := localday.Key(act.StartedAt, zone)
		days := []string{
			localday.AddDays(localKey, -1),
			localKey,
			localday.AddDays(localKey, 1),
		}
		candidates, err := s.db.ListPlannedEntriesForDays(athleteID, days)
		if err != nil {
			return false, err
		}

		if res := match.Select(act, candidates, zone); res.Entry != nil {
			status := store.StatusCompletedSynced
			if act.Provisional {
				status = store.StatusCompletedSyncedDraft
			}
			ok, err := s.db.MarkMatched(res.Entry.ID, status)
			if err != nil {
				return false, err
			}
			if ok {
				completed.PlannedEntryID = &res.Entry.ID
				completed.MatchDayDiff = res.MatchDayDiff
				matched = true
			}
		}
	}

	if _, err := s.db.UpsertCompletedActivity(completed); err != nil {
		return false, err
	}
	return matched, nil
}

func (s *SyncService) zoneFor(athleteID int64) string {
	athlete, err := s.db.GetAthlete(athleteID)
	if err != nil || athlete.Timezone == "" {
		return s.defaultZone
	}
	return athlete.Timezone
}

// metricsFromStrava extracts the derived figures worth keeping into the
// tagged metrics blob.
func metricsFromStrava(a strava.Activity) store.Metrics {
	sm := &store.StravaMetrics{}
	if a.AverageHeartrate > 0 {
		v := a.AverageHeartrate
		sm.AverageHeartrate = &v
	}
	if a.MaxHeartrate > 0 {
		v := a.MaxHeartrate
		sm.MaxHeartrate = &v
	}
	if a.AverageWatts > 0 {
		v := a.AverageWatts
		sm.AverageWatts = &v
	}
	if a.Calories > 0 {
		v := a.Calories
		sm.Calories = &v
	}
	if a.AverageSpeed > 0 {
		v := a.AverageSpeed
		sm.AverageSpeed = &v
	}
	return store.Metrics{Kind: store.MetricsKindStrava, Strava: sm}
}

// RunLeased executes one leased sync attempt for an athlete: claims the
// ledger row, runs the sync, and releases with success or a scheduled
// retry. Returns acquired=false when debounce, an active lease, or a
// pending backoff blocked the attempt.
func (s *SyncService) RunLeased(ctx context.Context, athleteID int64, opts SyncOptions, now time.Time) (acquired bool, summary *SyncSummary, err error) {
	acquired, err = s.db.TryAcquireSyncLease(athleteID, now, LeaseDuration, DebounceWindow)
	if err != nil || !acquired {
		return false, nil, err
	}

	summary = s.SyncAthlete(ctx, athleteID, opts, now)

	if len(summary.Errors) > 0 {
		backoff := GenericBackoff
		if summary.RateLimited() {
			backoff = RateLimitBackoff
		}
		if err := s.db.ReleaseSyncRetryable(athleteID, now, backoff, summary.ErrorMessage()); err != nil {
			return true, summary, err
		}
		return true, summary, nil
	}

	if err := s.db.ReleaseSyncSuccess(athleteID, now); err != nil {
		return true, summary, err
	}
	return true, summary, nil
}

// SweepDue feeds pending intents whose backoff has elapsed back through
// the normal lease path. Retries always run incrementally: the activity
// hint may be stale after several debounced events, and the watermark
// covers everything since the last clean run.
func (s *SyncService) SweepDue(ctx context.Context, now time.Time, limit int) {
	intents, err := s.db.ListDueSyncIntents(now, limit)
	if err != nil {
		s.logger.Error("listing due sync intents", "error", err)
		return
	}

	for _, si := range intents {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := s.RunLeased(ctx, si.AthleteID, SyncOptions{}, now); err != nil {
			s.logger.Error("retry sweep run failed", "athlete_id", si.AthleteID, "error", err)
		}
	}
}
