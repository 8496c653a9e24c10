// Package summary aggregates resolved calendar items into range
// totals. Summarize is pure: callers resolve the range first and hand
// over flat items, so weekly and arbitrary-range views share one code
// path and the math is trivially testable.
package summary

import "sort"

// Item is one resolved calendar slot: a planned session, an ad-hoc
// completion, or both when a sync linked them. Pointer fields are nil
// when the underlying record carries no figure.
type Item struct {
	Day        string
	Discipline string

	Planned   bool
	Completed bool
	Missed    bool
	Skipped   bool

	PlannedMinutes   *int
	CompletedMinutes *int
	PlannedMeters    *float64
	CompletedMeters  *float64
}

// Totals are the aggregate figures for one bucket.
type Totals struct {
	PlannedSessions   int     `json:"planned_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	MissedSessions    int     `json:"missed_sessions"`
	SkippedSessions   int     `json:"skipped_sessions"`
	PlannedMinutes    int     `json:"planned_minutes"`
	CompletedMinutes  int     `json:"completed_minutes"`
	PlannedMeters     float64 `json:"planned_meters"`
	CompletedMeters   float64 `json:"completed_meters"`
}

// DisciplineTotals is one discipline's bucket within a summary.
type DisciplineTotals struct {
	Discipline string `json:"discipline"`
	Totals
}

// Summary is the aggregate over a range, overall plus per discipline
// sorted by discipline name.
type Summary struct {
	Totals
	ByDiscipline []DisciplineTotals `json:"by_discipline,omitempty"`
}

// Summarize folds items into totals. Completed work that carries no
// measured figure falls back to the planned figure, so a synced manual
// completion still counts for what the coach prescribed. Ad-hoc
// completions with no planned counterpart add to completed totals only.
func Summarize(items []Item) Summary {
	var overall Totals
	byDiscipline := make(map[string]*Totals)

	for _, item := range items {
		buckets := []*Totals{&overall}
		if item.Discipline != "" {
			dt, ok := byDiscipline[item.Discipline]
			if !ok {
				dt = &Totals{}
				byDiscipline[item.Discipline] = dt
			}
			buckets = append(buckets, dt)
		}
		for _, b := range buckets {
			accumulate(b, item)
		}
	}

	names := make([]string, 0, len(byDiscipline))
	for name := range byDiscipline {
		names = append(names, name)
	}
	sort.Strings(names)

	out := Summary{Totals: overall}
	for _, name := range names {
		out.ByDiscipline = append(out.ByDiscipline, DisciplineTotals{
			Discipline: name,
			Totals:     *byDiscipline[name],
		})
	}
	return out
}

func accumulate(t *Totals, item Item) {
	if item.Planned {
		t.PlannedSessions++
		if item.PlannedMinutes != nil {
			t.PlannedMinutes += *item.PlannedMinutes
		}
		if item.PlannedMeters != nil {
			t.PlannedMeters += *item.PlannedMeters
		}
	}
	if item.Missed {
		t.MissedSessions++
	}
	if item.Skipped {
		t.SkippedSessions++
	}
	if !item.Completed {
		return
	}
	t.CompletedSessions++
	t.CompletedMinutes += fallbackInt(item.CompletedMinutes, item.PlannedMinutes)
	t.CompletedMeters += fallbackFloat(item.CompletedMeters, item.PlannedMeters)
}

func fallbackInt(measured, planned *int) int {
	if measured != nil {
		return *measured
	}
	if planned != nil {
		return *planned
	}
	return 0
}

func fallbackFloat(measured, planned *float64) float64 {
	if measured != nil {
		return *measured
	}
	if planned != nil {
		return *planned
	}
	return 0
}
