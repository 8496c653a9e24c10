package service

import (
	"fmt"
	"sort"
	"time"

	"coachsync/internal/localday"
	"coachsync/internal/store"
	"coachsync/internal/summary"
)

// QueryService assembles read models: resolved calendar ranges and
// their summaries. Everything is computed from the store on demand; the
// server layer decides what to cache.
type QueryService struct {
	db          *store.DB
	defaultZone string
}

func NewQueryService(db *store.DB, defaultZone string) *QueryService {
	return &QueryService{db: db, defaultZone: defaultZone}
}

// ResolvedEntry is one calendar slot in an athlete's range view: a
// planned session, an ad-hoc completion, or a linked pair. Linked
// completions sit on the planned entry's day even when the provider
// timestamp crossed midnight into the adjacent date.
type ResolvedEntry struct {
	Day       string
	Planned   *store.PlannedEntry
	Completed *store.CompletedActivity
	Missed    bool
}

// ResolveRange builds the calendar view for [fromKey, toKey] inclusive,
// interpreted in the athlete's timezone. now drives missed detection
// only; a still-matchable entry counts as missed once its local day has
// fully elapsed.
func (q *QueryService) ResolveRange(athleteID int64, fromKey, toKey string, now time.Time) ([]ResolvedEntry, error) {
	if fromKey > toKey {
		return nil, fmt.Errorf("invalid day range %s..%s", fromKey, toKey)
	}
	zone := q.zoneFor(athleteID)
	loc := localday.Zone(zone)

	planned, err := q.db.ListPlannedEntriesInRange(athleteID, fromKey, toKey)
	if err != nil {
		return nil, err
	}

	// Widen the instant window a day each side: a completion linked to
	// an in-range entry can start on the adjacent UTC date.
	window, err := localday.UTCRangeForKeyRange(
		localday.AddDays(fromKey, -1), localday.AddDays(toKey, 1), zone)
	if err != nil {
		return nil, err
	}
	completions, err := q.db.ListCompletedActivitiesInWindow(athleteID, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	// Listing is newest-first, so the first completion seen per entry
	// is the authoritative one.
	byEntry := make(map[string]*store.CompletedActivity)
	var adHoc []*store.CompletedActivity
	for i := range completions {
		c := &completions[i]
		if c.PlannedEntryID != nil {
			if _, ok := byEntry[*c.PlannedEntryID]; !ok {
				byEntry[*c.PlannedEntryID] = c
			}
			continue
		}
		adHoc = append(adHoc, c)
	}

	out := make([]ResolvedEntry, 0, len(planned)+len(adHoc))
	for i := range planned {
		e := &planned[i]
		re := ResolvedEntry{Day: e.Day, Planned: e, Completed: byEntry[e.ID]}
		re.Missed = e.Status.Matchable() && re.Completed == nil &&
			localday.PastEndOfDay(e.Day, zone, now)
		out = append(out, re)
	}
	for _, c := range adHoc {
		day := localday.Key(c.StartedAt, zone)
		if !localday.InRange(day, fromKey, toKey) {
			continue
		}
		out = append(out, ResolvedEntry{Day: day, Completed: c})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return slotKey(out[i], loc) < slotKey(out[j], loc)
	})
	return out, nil
}

// slotKey orders slots within a day: by local start time, then id for
// determinism. Untimed planned entries sort first.
func slotKey(re ResolvedEntry, loc *time.Location) string {
	if re.Planned != nil {
		return re.Planned.StartTime + "|" + re.Planned.ID
	}
	return re.Completed.StartedAt.In(loc).Format("15:04") + "|" + re.Completed.ID
}

// RangeSummary resolves a range and aggregates it.
func (q *QueryService) RangeSummary(athleteID int64, fromKey, toKey string, now time.Time) (summary.Summary, error) {
	entries, err := q.ResolveRange(athleteID, fromKey, toKey, now)
	if err != nil {
		return summary.Summary{}, err
	}
	return summary.Summarize(SummaryItems(entries)), nil
}

// SummaryItems projects resolved entries into aggregation inputs.
func SummaryItems(entries []ResolvedEntry) []summary.Item {
	items := make([]summary.Item, 0, len(entries))
	for _, re := range entries {
		item := summary.Item{Day: re.Day, Missed: re.Missed}
		if re.Planned != nil {
			item.Planned = true
			item.Discipline = re.Planned.Discipline
			item.PlannedMinutes = re.Planned.DurationMinutes
			item.PlannedMeters = re.Planned.DistanceMeters
			item.Skipped = re.Planned.Status == store.StatusSkipped
			item.Completed = re.Planned.Status.Completed()
		}
		if re.Completed != nil {
			item.Completed = true
			item.CompletedMinutes = re.Completed.DurationMinutes
			item.CompletedMeters = re.Completed.DistanceMeters
			if item.Discipline == "" {
				item.Discipline = re.Completed.Discipline
			}
		}
		items = append(items, item)
	}
	return items
}

// WeekRange returns the Monday-through-Sunday day keys of the week
// containing key.
func WeekRange(key string) (fromKey, toKey string, err error) {
	y, m, d, err := localday.ParseKey(key)
	if err != nil {
		return "", "", err
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	fromKey = t.AddDate(0, 0, -offset).Format(localday.KeyFormat)
	return fromKey, localday.AddDays(fromKey, 6), nil
}

func (q *QueryService) zoneFor(athleteID int64) string {
	athlete, err := q.db.GetAthlete(athleteID)
	if err != nil || athlete.Timezone == "" {
		return q.defaultZone
	}
	return athlete.Timezone
}
