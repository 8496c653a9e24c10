package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUpsertCompletedActivity_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	started := time.Date(2026, 2, 5, 13, 10, 0, 0, time.UTC)
	a := &CompletedActivity{
		ID:              uuid.NewString(),
		AthleteID:       42,
		Source:          SourceStrava,
		ExternalID:      "9001",
		StartedAt:       started,
		DurationMinutes: intPtr(45),
		Metrics:         UnknownMetrics(),
	}

	id1, err := db.UpsertCompletedActivity(a)
	if err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	// Reprocessing the same external event with a fresh row id must
	// collapse onto the existing row.
	a2 := *a
	a2.ID = uuid.NewString()
	a2.DurationMinutes = intPtr(46)
	id2, err := db.UpsertCompletedActivity(&a2)
	if err != nil {
		t.Fatalf("second UpsertCompletedActivity failed: %v", err)
	}

	if id1 != id2 {
		t.Errorf("upsert created a second row: %s vs %s", id1, id2)
	}
	count, _ := db.CountCompletedActivities(42)
	if count != 1 {
		t.Errorf("expected 1 completion, got %d", count)
	}

	stored, err := db.GetCompletedActivityByExternalID(42, SourceStrava, "9001")
	if err != nil {
		t.Fatalf("GetCompletedActivityByExternalID failed: %v", err)
	}
	if stored.DurationMinutes == nil || *stored.DurationMinutes != 46 {
		t.Errorf("measured fields should refresh on re-sync, got %v", stored.DurationMinutes)
	}
}

func TestUpsertCompletedActivity_FirstMatchWins(t *testing.T) {
	db := setupTestDB(t)

	entry1 := &PlannedEntry{ID: uuid.NewString(), AthleteID: 42, Day: "2026-02-05", Discipline: "run"}
	entry2 := &PlannedEntry{ID: uuid.NewString(), AthleteID: 42, Day: "2026-02-06", Discipline: "run"}
	if err := db.CreatePlannedEntry(entry1); err != nil {
		t.Fatalf("CreatePlannedEntry failed: %v", err)
	}
	if err := db.CreatePlannedEntry(entry2); err != nil {
		t.Fatalf("CreatePlannedEntry failed: %v", err)
	}

	a := &CompletedActivity{
		ID:             uuid.NewString(),
		AthleteID:      42,
		PlannedEntryID: &entry1.ID,
		Source:         SourceStrava,
		ExternalID:     "9001",
		StartedAt:      time.Date(2026, 2, 5, 13, 10, 0, 0, time.UTC),
		MatchDayDiff:   -1,
		Metrics:        UnknownMetrics(),
	}
	if _, err := db.UpsertCompletedActivity(a); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	// A re-sync proposing a different link must not relink.
	a2 := *a
	a2.ID = uuid.NewString()
	a2.PlannedEntryID = &entry2.ID
	a2.MatchDayDiff = 0
	if _, err := db.UpsertCompletedActivity(&a2); err != nil {
		t.Fatalf("second UpsertCompletedActivity failed: %v", err)
	}

	stored, _ := db.GetCompletedActivityByExternalID(42, SourceStrava, "9001")
	if stored.PlannedEntryID == nil || *stored.PlannedEntryID != entry1.ID {
		t.Errorf("link changed on re-sync: %v", stored.PlannedEntryID)
	}
	if stored.MatchDayDiff != -1 {
		t.Errorf("match_day_diff changed on re-sync: %d", stored.MatchDayDiff)
	}
}

func TestUpsertCompletedActivity_LateLinkAllowed(t *testing.T) {
	db := setupTestDB(t)

	entry := &PlannedEntry{ID: uuid.NewString(), AthleteID: 42, Day: "2026-02-05", Discipline: "run"}
	if err := db.CreatePlannedEntry(entry); err != nil {
		t.Fatalf("CreatePlannedEntry failed: %v", err)
	}

	// Stored unlinked first.
	a := &CompletedActivity{
		ID:         uuid.NewString(),
		AthleteID:  42,
		Source:     SourceStrava,
		ExternalID: "9001",
		StartedAt:  time.Date(2026, 2, 5, 13, 10, 0, 0, time.UTC),
		Metrics:    UnknownMetrics(),
	}
	if _, err := db.UpsertCompletedActivity(a); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	// A later re-sync that finds a match may establish the first link.
	a2 := *a
	a2.ID = uuid.NewString()
	a2.PlannedEntryID = &entry.ID
	a2.MatchDayDiff = 0
	if _, err := db.UpsertCompletedActivity(&a2); err != nil {
		t.Fatalf("second UpsertCompletedActivity failed: %v", err)
	}

	stored, _ := db.GetCompletedActivityByExternalID(42, SourceStrava, "9001")
	if stored.PlannedEntryID == nil || *stored.PlannedEntryID != entry.ID {
		t.Error("unlinked completion should accept its first link")
	}
}

func TestListCompletedActivitiesInWindow(t *testing.T) {
	db := setupTestDB(t)

	times := []time.Time{
		time.Date(2026, 2, 4, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 5, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC), // at window end, excluded
	}
	for i, at := range times {
		_, err := db.UpsertCompletedActivity(&CompletedActivity{
			ID:         uuid.NewString(),
			AthleteID:  42,
			Source:     SourceStrava,
			ExternalID: string(rune('a' + i)),
			StartedAt:  at,
			Metrics:    UnknownMetrics(),
		})
		if err != nil {
			t.Fatalf("UpsertCompletedActivity failed: %v", err)
		}
	}

	got, err := db.ListCompletedActivitiesInWindow(42,
		time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListCompletedActivitiesInWindow failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 completion in window, got %d", len(got))
	}
	if !got[0].StartedAt.Equal(times[1]) {
		t.Errorf("wrong completion in window: %v", got[0].StartedAt)
	}
}

func TestCompletedActivity_MetricsRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	a := &CompletedActivity{
		ID:         uuid.NewString(),
		AthleteID:  42,
		Source:     SourceStrava,
		ExternalID: "9001",
		StartedAt:  time.Date(2026, 2, 5, 13, 10, 0, 0, time.UTC),
		Metrics: Metrics{
			Kind: MetricsKindStrava,
			Strava: &StravaMetrics{
				AverageHeartrate: float64Ptr(148),
				Calories:         float64Ptr(512),
				AverageSpeed:     float64Ptr(3.2),
			},
		},
	}
	if _, err := db.UpsertCompletedActivity(a); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	stored, err := db.GetCompletedActivityByExternalID(42, SourceStrava, "9001")
	if err != nil {
		t.Fatalf("GetCompletedActivityByExternalID failed: %v", err)
	}
	if hr := stored.Metrics.AverageHeartrate(); hr == nil || *hr != 148 {
		t.Errorf("AverageHeartrate = %v, want 148", hr)
	}
	if cal := stored.Metrics.Calories(); cal == nil || *cal != 512 {
		t.Errorf("Calories = %v, want 512", cal)
	}
	if pace := stored.Metrics.PaceSecondsPerKm(); pace == nil || *pace < 312 || *pace > 313 {
		t.Errorf("PaceSecondsPerKm = %v, want ~312.5", pace)
	}
	if stored.Metrics.Power() != nil {
		t.Error("Power should be nil when not reported")
	}
}
