package store

import "time"

// Status is the lifecycle state of a planned calendar entry.
type Status string

const (
	StatusPlanned              Status = "PLANNED"
	StatusModified             Status = "MODIFIED"
	StatusCompletedManual      Status = "COMPLETED_MANUAL"
	StatusCompletedSynced      Status = "COMPLETED_SYNCED"
	StatusCompletedSyncedDraft Status = "COMPLETED_SYNCED_DRAFT"
	StatusSkipped              Status = "SKIPPED"
)

// Matchable reports whether a sync match may still consume this entry.
func (s Status) Matchable() bool {
	return s == StatusPlanned || s == StatusModified
}

// Completed reports whether the entry is in any completed state.
func (s Status) Completed() bool {
	return s == StatusCompletedManual || s == StatusCompletedSynced || s == StatusCompletedSyncedDraft
}

// Completion sources. Externally synced sources carry the provider tag.
const (
	SourceManual = "MANUAL"
	SourceStrava = "strava"
)

// Athlete is the slice of the athlete record the reconciliation core
// needs: identity and the IANA timezone every local-day computation
// hangs off.
type Athlete struct {
	ID       int64
	Name     string
	Timezone string
}

// Connection holds a per-athlete provider integration: credentials and
// the last-sync watermark.
type Connection struct {
	AthleteID         int64
	Provider          string
	ProviderAthleteID int64
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
	LastSyncAt        *time.Time // watermark; nil means never synced
}

// PlannedEntry is a coach-authored training session for one athlete on
// one local calendar day. Day plus StartTime, interpreted in the
// athlete's timezone, determines the intended instant used for
// matching. Entries are soft-deleted, never removed.
type PlannedEntry struct {
	ID              string
	AthleteID       int64
	Day             string // local day key, "YYYY-MM-DD"
	StartTime       string // optional "HH:MM" local, "" if unset
	Discipline      string
	DurationMinutes *int
	DistanceMeters  *float64
	Status          Status
	Deleted         bool
}

// CompletedActivity is one synced or manually logged completion,
// optionally linked to a planned entry. (AthleteID, Source,
// ExternalID) is the idempotency key: reprocessing the same provider
// event upserts rather than duplicates.
type CompletedActivity struct {
	ID              string
	AthleteID       int64
	PlannedEntryID  *string
	Source          string
	ExternalID      string
	Discipline      string
	StartedAt       time.Time // UTC instant
	DurationMinutes *int
	DistanceMeters  *float64
	// MatchDayDiff is the planned entry's day minus the naive UTC
	// calendar date of StartedAt, in days. Zero for unlinked
	// activities.
	MatchDayDiff int
	Metrics      Metrics
}

// SyncIntent is the per-athlete ledger row serializing sync work. One
// row per athlete for the athlete's lifetime; never deleted.
type SyncIntent struct {
	AthleteID      int64
	Pending        bool
	LastEventAt    time.Time
	LastActivityID *int64
	LockedUntil    *time.Time
	LastAttemptAt  *time.Time
	Attempts       int
	NextAttemptAt  *time.Time
	LastError      string
	LastSuccessAt  *time.Time
}

// Locked reports whether the intent holds an unexpired lease at now.
func (si *SyncIntent) Locked(now time.Time) bool {
	return si.LockedUntil != nil && si.LockedUntil.After(now)
}
