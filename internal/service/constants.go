package service

import "time"

// Ledger timing. Webhook bursts inside the debounce window collapse to
// one sync run; a crashed run's lease expires on its own and the retry
// sweep reclaims the row.
const (
	DebounceWindow = 2 * time.Minute
	LeaseDuration  = 5 * time.Minute

	// Backoff after a retryable failure. Rate-limit rejections wait
	// longer than generic failures so the provider quota window can
	// recover before the next attempt.
	GenericBackoff   = 15 * time.Minute
	RateLimitBackoff = 30 * time.Minute
)

const (
	// DefaultWindowDays bounds the first sync of a connection that has
	// no watermark yet.
	DefaultWindowDays = 30

	// watermarkOverlap re-fetches slightly before the stored watermark
	// so activities uploaded late are not skipped.
	watermarkOverlap = time.Hour
)
