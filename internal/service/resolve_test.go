package service

import (
	"testing"
	"time"

	"coachsync/internal/store"
)

func setupQuery(t *testing.T) (*store.DB, *QueryService) {
	t.Helper()
	db := openTestDB(t)
	return db, NewQueryService(db, "UTC")
}

func TestResolveRangePlacesLinkedCompletionOnPlannedDay(t *testing.T) {
	db, q := setupQuery(t)
	seedAthlete(t, db, 1, "America/New_York")

	if err := db.CreatePlannedEntry(&store.PlannedEntry{
		ID: "e1", AthleteID: 1, Day: "2026-01-09", StartTime: "23:00",
		Discipline: "run", DurationMinutes: intPtr(35),
	}); err != nil {
		t.Fatalf("CreatePlannedEntry failed: %v", err)
	}
	if ok, err := db.MarkMatched("e1", store.StatusCompletedSynced); err != nil || !ok {
		t.Fatalf("MarkMatched = %v, %v", ok, err)
	}

	// The provider timestamp crossed into Jan 10 UTC, but the link
	// pins the completion to the Jan 9 slot.
	entryID := "e1"
	started := time.Date(2026, 1, 10, 4, 30, 0, 0, time.UTC)
	if _, err := db.UpsertCompletedActivity(&store.CompletedActivity{
		ID: "c1", AthleteID: 1, PlannedEntryID: &entryID,
		Source: store.SourceStrava, ExternalID: "101", Discipline: "run",
		StartedAt: started, DurationMinutes: intPtr(33), MatchDayDiff: -1,
	}); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	now := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	resolved, err := q.ResolveRange(1, "2026-01-09", "2026-01-09", now)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("resolved %d slots, want 1", len(resolved))
	}
	slot := resolved[0]
	if slot.Day != "2026-01-09" || slot.Planned == nil || slot.Completed == nil {
		t.Fatalf("slot = %+v, want linked pair on 2026-01-09", slot)
	}
	if slot.Missed {
		t.Error("completed slot reported missed")
	}

	// The adjacent UTC day shows nothing: the completion belongs to its
	// planned slot, not its timestamp's date.
	next, err := q.ResolveRange(1, "2026-01-10", "2026-01-10", now)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if len(next) != 0 {
		t.Errorf("resolved %d slots on 2026-01-10, want 0", len(next))
	}
}

func TestResolveRangeMissedDetection(t *testing.T) {
	db, q := setupQuery(t)
	seedAthlete(t, db, 1, "America/New_York")

	for _, e := range []store.PlannedEntry{
		{ID: "past", AthleteID: 1, Day: "2026-03-01", Discipline: "run"},
		{ID: "future", AthleteID: 1, Day: "2026-03-05", Discipline: "run"},
	} {
		e := e
		if err := db.CreatePlannedEntry(&e); err != nil {
			t.Fatalf("CreatePlannedEntry failed: %v", err)
		}
	}

	// Midday March 3 local: March 1 has fully elapsed, March 5 has not.
	now := time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)
	resolved, err := q.ResolveRange(1, "2026-03-01", "2026-03-07", now)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved %d slots, want 2", len(resolved))
	}
	if !resolved[0].Missed {
		t.Error("elapsed unmatched entry not reported missed")
	}
	if resolved[1].Missed {
		t.Error("future entry reported missed")
	}
}

func TestResolveRangeAdHocCompletion(t *testing.T) {
	db, q := setupQuery(t)
	seedAthlete(t, db, 1, "America/New_York")

	// 01:00 UTC March 3 is the evening of March 2 locally.
	if _, err := db.UpsertCompletedActivity(&store.CompletedActivity{
		ID: "c1", AthleteID: 1, Source: store.SourceStrava, ExternalID: "201",
		Discipline: "bike", StartedAt: time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC),
		DurationMinutes: intPtr(55),
	}); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	resolved, err := q.ResolveRange(1, "2026-03-02", "2026-03-02", now)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("resolved %d slots, want 1", len(resolved))
	}
	slot := resolved[0]
	if slot.Planned != nil || slot.Completed == nil || slot.Day != "2026-03-02" {
		t.Fatalf("slot = %+v, want ad-hoc completion on 2026-03-02", slot)
	}
}

func TestRangeSummaryFallsBackToPlannedMinutes(t *testing.T) {
	db, q := setupQuery(t)
	seedAthlete(t, db, 1, "UTC")

	if err := db.CreatePlannedEntry(&store.PlannedEntry{
		ID: "e1", AthleteID: 1, Day: "2026-03-02", Discipline: "run",
		DurationMinutes: intPtr(35),
	}); err != nil {
		t.Fatalf("CreatePlannedEntry failed: %v", err)
	}
	if ok, err := db.MarkMatched("e1", store.StatusCompletedSynced); err != nil || !ok {
		t.Fatalf("MarkMatched = %v, %v", ok, err)
	}
	entryID := "e1"
	if _, err := db.UpsertCompletedActivity(&store.CompletedActivity{
		ID: "c1", AthleteID: 1, PlannedEntryID: &entryID,
		Source: store.SourceStrava, ExternalID: "101", Discipline: "run",
		StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("UpsertCompletedActivity failed: %v", err)
	}

	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	sum, err := q.RangeSummary(1, "2026-03-02", "2026-03-08", now)
	if err != nil {
		t.Fatalf("RangeSummary failed: %v", err)
	}
	if sum.CompletedMinutes != 35 {
		t.Errorf("CompletedMinutes = %d, want 35 (planned fallback)", sum.CompletedMinutes)
	}
	if sum.CompletedSessions != 1 {
		t.Errorf("CompletedSessions = %d, want 1", sum.CompletedSessions)
	}
}

func TestWeekRange(t *testing.T) {
	tests := []struct {
		key      string
		from, to string
	}{
		{"2026-03-04", "2026-03-02", "2026-03-08"}, // Wednesday
		{"2026-03-02", "2026-03-02", "2026-03-08"}, // Monday
		{"2026-03-08", "2026-03-02", "2026-03-08"}, // Sunday
		{"2026-01-01", "2025-12-29", "2026-01-04"}, // crosses year boundary
	}
	for _, tt := range tests {
		from, to, err := WeekRange(tt.key)
		if err != nil {
			t.Errorf("WeekRange(%s) failed: %v", tt.key, err)
			continue
		}
		if from != tt.from || to != tt.to {
			t.Errorf("WeekRange(%s) = %s..%s, want %s..%s", tt.key, from, to, tt.from, tt.to)
		}
	}

	if _, _, err := WeekRange("not-a-day"); err == nil {
		t.Error("WeekRange accepted an invalid key")
	}
}
