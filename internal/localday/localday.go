// Package localday converts between absolute instants, IANA-zone-local
// calendar day keys ("YYYY-MM-DD"), and the UTC instant ranges that
// bound a local day. A day key is a civil date, never an instant:
// re-parsing one as UTC midnight and projecting it back through a zone
// is exactly the off-by-one-day bug this package exists to prevent.
package localday

import (
	"fmt"
	"time"
)

// KeyFormat is the canonical day key layout.
const KeyFormat = "2006-01-02"

// Zone resolves an IANA timezone name, falling back to UTC when the
// name is empty or unrecognized. Read paths must never fail on a bad
// stored timezone string.
func Zone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Key projects an absolute instant into the civil date of the given
// IANA zone.
func Key(t time.Time, zone string) string {
	return t.In(Zone(zone)).Format(KeyFormat)
}

// KeyUTC is the naive UTC calendar date of an instant, used when
// computing match day diffs against provider timestamps.
func KeyUTC(t time.Time) string {
	return t.UTC().Format(KeyFormat)
}

// ParseKey validates a day key and returns its civil date components.
func ParseKey(key string) (year int, month time.Month, day int, err error) {
	t, err := time.Parse(KeyFormat, key)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parsing day key %q: %w", key, err)
	}
	return t.Year(), t.Month(), t.Day(), nil
}

// AddDays shifts a day key by n civil days (n may be negative).
// Invalid keys are returned unchanged.
func AddDays(key string, n int) string {
	y, m, d, err := ParseKey(key)
	if err != nil {
		return key
	}
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC).Format(KeyFormat)
}

// DaysBetween returns the signed number of civil days from one key to
// another (positive when to is after from).
func DaysBetween(from, to string) int {
	fy, fm, fd, err := ParseKey(from)
	if err != nil {
		return 0
	}
	ty, tm, td, err := ParseKey(to)
	if err != nil {
		return 0
	}
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// InRange reports whether key falls within [from, to] inclusive.
// Day keys compare lexicographically.
func InRange(key, from, to string) bool {
	return key >= from && key <= to
}

// Keys enumerates every day key from from to to inclusive. Invalid
// keys yield nil.
func Keys(from, to string) []string {
	n := DaysBetween(from, to)
	if from > to || n < 0 {
		return nil
	}
	if _, _, _, err := ParseKey(from); err != nil {
		return nil
	}
	keys := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		keys = append(keys, AddDays(from, i))
	}
	return keys
}

// UTCRange is a half-open interval [Start, End) of absolute instants.
type UTCRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r UTCRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// UTCRangeForKey returns the UTC instant interval whose local-zone
// representation is the given calendar day. time.Date applies the
// zone's real offset rules, so DST-shortened or lengthened days come
// out with 23h or 25h ranges rather than a fixed 24h.
func UTCRangeForKey(key, zone string) (UTCRange, error) {
	y, m, d, err := ParseKey(key)
	if err != nil {
		return UTCRange{}, err
	}
	loc := Zone(zone)
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	return UTCRange{Start: start.UTC(), End: end.UTC()}, nil
}

// UTCRangeForKeyRange returns the union interval across [fromKey,
// toKey], used to bound database queries without truncating
// boundary-day activities.
func UTCRangeForKeyRange(fromKey, toKey, zone string) (UTCRange, error) {
	first, err := UTCRangeForKey(fromKey, zone)
	if err != nil {
		return UTCRange{}, err
	}
	last, err := UTCRangeForKey(toKey, zone)
	if err != nil {
		return UTCRange{}, err
	}
	return UTCRange{Start: first.Start, End: last.End}, nil
}

// IntendedInstant combines a day key and an optional "HH:MM" local
// start time into an absolute instant in the given zone. When no time
// is given the day's midday is used as a neutral anchor.
func IntendedInstant(key, startTime, zone string) (time.Time, error) {
	y, m, d, err := ParseKey(key)
	if err != nil {
		return time.Time{}, err
	}
	loc := Zone(zone)
	hour, minute := 12, 0
	if startTime != "" {
		t, err := time.Parse("15:04", startTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing start time %q: %w", startTime, err)
		}
		hour, minute = t.Hour(), t.Minute()
	}
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

// PastEndOfDay reports whether now is at or past the end of the local
// day, which is when a still-planned session counts as missed.
func PastEndOfDay(key, zone string, now time.Time) bool {
	r, err := UTCRangeForKey(key, zone)
	if err != nil {
		return false
	}
	return !now.Before(r.End)
}
