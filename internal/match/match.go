// Package match links provider activities to planned calendar entries.
// Selection is pure: callers load the candidate entries and pass the
// athlete's timezone, and get back at most one entry to consume.
package match

import (
	"time"

	"coachsync/internal/localday"
	"coachsync/internal/store"
)

// BoundarySlack bounds how far from local midnight an activity may
// start and still match an entry on the adjacent calendar day. Beyond
// this the activity simply belongs to its own day.
const BoundarySlack = 90 * time.Minute

// Candidates come from the activity's local day plus one day either
// side; anything further off is never a plausible match.
const candidateWindowDays = 1

// Activity is the provider-neutral view of a completed session the
// engine matches against the calendar.
type Activity struct {
	ExternalID      string
	Source          string
	StartedAt       time.Time // UTC instant
	Discipline      string
	DurationMinutes *int
	DistanceMeters  *float64
	Provisional     bool
}

// Result names the selected entry, or a nil Entry when nothing
// matched. MatchDayDiff is the entry's day minus the naive UTC date of
// the activity start, recorded so later re-resolution can place the
// completion on the intended local day.
type Result struct {
	Entry        *store.PlannedEntry
	MatchDayDiff int
}

// Select picks the best matchable entry for the activity, or none.
// Same-local-day entries are always eligible; adjacent-day entries only
// when the activity starts within BoundarySlack of the midnight between
// the two days. Among eligible entries the closest intended start wins,
// with ties broken by matching discipline and then smallest id.
func Select(act Activity, candidates []store.PlannedEntry, zone string) Result {
	localKey := localday.Key(act.StartedAt, zone)
	dayRange, err := localday.UTCRangeForKey(localKey, zone)
	if err != nil {
		return Result{}
	}

	var best *store.PlannedEntry
	var bestDelta time.Duration

	for i := range candidates {
		entry := &candidates[i]
		if entry.Deleted || !entry.Status.Matchable() {
			continue
		}
		dayDiff := localday.DaysBetween(localKey, entry.Day)
		if dayDiff < -candidateWindowDays || dayDiff > candidateWindowDays {
			continue
		}
		if dayDiff != 0 && !nearBoundary(act.StartedAt, dayRange, dayDiff) {
			continue
		}
		intended, err := localday.IntendedInstant(entry.Day, entry.StartTime, zone)
		if err != nil {
			continue
		}
		delta := absDuration(act.StartedAt.Sub(intended))
		if best == nil || better(entry, delta, best, bestDelta, act.Discipline) {
			best, bestDelta = entry, delta
		}
	}

	if best == nil {
		return Result{}
	}
	return Result{
		Entry:        best,
		MatchDayDiff: localday.DaysBetween(localday.KeyUTC(act.StartedAt), best.Day),
	}
}

// nearBoundary reports whether the activity started close enough to the
// midnight shared with the adjacent day. dayDiff is negative when the
// entry sits on the previous local day, positive for the next.
func nearBoundary(start time.Time, dayRange localday.UTCRange, dayDiff int) bool {
	if dayDiff < 0 {
		return start.Sub(dayRange.Start) <= BoundarySlack
	}
	return dayRange.End.Sub(start) <= BoundarySlack
}

func better(cand *store.PlannedEntry, delta time.Duration, best *store.PlannedEntry, bestDelta time.Duration, discipline string) bool {
	if delta != bestDelta {
		return delta < bestDelta
	}
	candSame := cand.Discipline == discipline
	bestSame := best.Discipline == discipline
	if candSame != bestSame {
		return candSame
	}
	return cand.ID < best.ID
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
