package summary

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

func TestSummarizeFallsBackToPlannedMinutes(t *testing.T) {
	// A synced completion with no measured duration counts for the
	// prescribed 35 minutes.
	items := []Item{
		{
			Day:            "2026-03-02",
			Discipline:     "run",
			Planned:        true,
			Completed:      true,
			PlannedMinutes: intPtr(35),
		},
	}

	got := Summarize(items)
	if got.CompletedMinutes != 35 {
		t.Errorf("CompletedMinutes = %d, want 35", got.CompletedMinutes)
	}
	if got.PlannedMinutes != 35 {
		t.Errorf("PlannedMinutes = %d, want 35", got.PlannedMinutes)
	}
	if got.CompletedSessions != 1 || got.PlannedSessions != 1 {
		t.Errorf("sessions = %d planned / %d completed, want 1/1",
			got.PlannedSessions, got.CompletedSessions)
	}
}

func TestSummarizeAdHocCompletion(t *testing.T) {
	// An unplanned activity adds to completed totals without inventing
	// a planned session.
	items := []Item{
		{
			Day:              "2026-03-03",
			Discipline:       "bike",
			Completed:        true,
			CompletedMinutes: intPtr(55),
		},
	}

	got := Summarize(items)
	if got.PlannedMinutes != 0 || got.PlannedSessions != 0 {
		t.Errorf("planned = %d minutes / %d sessions, want 0/0",
			got.PlannedMinutes, got.PlannedSessions)
	}
	if got.CompletedMinutes != 55 {
		t.Errorf("CompletedMinutes = %d, want 55", got.CompletedMinutes)
	}
	if got.CompletedSessions != 1 {
		t.Errorf("CompletedSessions = %d, want 1", got.CompletedSessions)
	}
}

func TestSummarizeMeasuredBeatsPlanned(t *testing.T) {
	items := []Item{
		{
			Day:              "2026-03-04",
			Discipline:       "run",
			Planned:          true,
			Completed:        true,
			PlannedMinutes:   intPtr(40),
			CompletedMinutes: intPtr(47),
			PlannedMeters:    float64Ptr(8000),
			CompletedMeters:  float64Ptr(9150),
		},
	}

	got := Summarize(items)
	if got.CompletedMinutes != 47 {
		t.Errorf("CompletedMinutes = %d, want 47", got.CompletedMinutes)
	}
	if got.CompletedMeters != 9150 {
		t.Errorf("CompletedMeters = %v, want 9150", got.CompletedMeters)
	}
}

func TestSummarizeMissedAndSkipped(t *testing.T) {
	items := []Item{
		{Day: "2026-03-02", Discipline: "run", Planned: true, Missed: true, PlannedMinutes: intPtr(30)},
		{Day: "2026-03-03", Discipline: "run", Planned: true, Skipped: true, PlannedMinutes: intPtr(45)},
	}

	got := Summarize(items)
	if got.MissedSessions != 1 || got.SkippedSessions != 1 {
		t.Errorf("missed/skipped = %d/%d, want 1/1", got.MissedSessions, got.SkippedSessions)
	}
	if got.CompletedMinutes != 0 {
		t.Errorf("CompletedMinutes = %d, want 0", got.CompletedMinutes)
	}
	if got.PlannedMinutes != 75 {
		t.Errorf("PlannedMinutes = %d, want 75", got.PlannedMinutes)
	}
}

func TestSummarizeByDisciplineSorted(t *testing.T) {
	items := []Item{
		{Day: "2026-03-02", Discipline: "swim", Planned: true, Completed: true, PlannedMinutes: intPtr(30)},
		{Day: "2026-03-03", Discipline: "bike", Planned: true, Completed: true, CompletedMinutes: intPtr(90)},
		{Day: "2026-03-04", Discipline: "run", Planned: true, Missed: true, PlannedMinutes: intPtr(40)},
		{Day: "2026-03-05", Discipline: "bike", Completed: true, CompletedMinutes: intPtr(60)},
	}

	got := Summarize(items)

	names := make([]string, len(got.ByDiscipline))
	for i, d := range got.ByDiscipline {
		names[i] = d.Discipline
	}
	want := []string{"bike", "run", "swim"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("discipline order = %v, want %v", names, want)
	}

	bike := got.ByDiscipline[0]
	if bike.CompletedMinutes != 150 || bike.CompletedSessions != 2 {
		t.Errorf("bike totals = %d minutes / %d sessions, want 150/2",
			bike.CompletedMinutes, bike.CompletedSessions)
	}
	if bike.PlannedSessions != 1 {
		t.Errorf("bike planned sessions = %d, want 1", bike.PlannedSessions)
	}

	if got.CompletedMinutes != 180 {
		t.Errorf("overall CompletedMinutes = %d, want 180", got.CompletedMinutes)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if got.PlannedSessions != 0 || got.CompletedSessions != 0 || len(got.ByDiscipline) != 0 {
		t.Errorf("empty summary not zero: %+v", got)
	}
}
