package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetCachesWithinTTL(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	calls := 0
	fill := func() (int, error) {
		calls++
		return 7, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get("k", now.Add(time.Duration(i)*time.Second), fill)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != 7 {
			t.Errorf("Get = %d, want 7", v)
		}
	}
	if calls != 1 {
		t.Errorf("fill called %d times, want 1", calls)
	}
}

func TestGetRefillsAfterExpiry(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	calls := 0
	fill := func() (int, error) {
		calls++
		return calls, nil
	}

	if v, _ := c.Get("k", now, fill); v != 1 {
		t.Errorf("first Get = %d, want 1", v)
	}
	// Exactly at expiry counts as stale.
	if v, _ := c.Get("k", now.Add(time.Minute), fill); v != 2 {
		t.Errorf("Get after expiry = %d, want 2", v)
	}
	if calls != 2 {
		t.Errorf("fill called %d times, want 2", calls)
	}
}

func TestInvalidate(t *testing.T) {
	c := New[string](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	calls := 0
	fill := func() (string, error) {
		calls++
		return "v", nil
	}

	c.Get("k", now, fill)
	c.Invalidate("k")
	c.Get("k", now, fill)
	if calls != 2 {
		t.Errorf("fill called %d times after invalidate, want 2", calls)
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fill := func() (int, error) { return 1, nil }

	c.Get("42/calendar/2026-03-01", now, fill)
	c.Get("42/summary/2026-W10", now, fill)
	c.Get("99/calendar/2026-03-01", now, fill)

	c.InvalidatePrefix("42/")
	if c.Len() != 1 {
		t.Errorf("Len after prefix invalidate = %d, want 1", c.Len())
	}
}

func TestGetDoesNotCacheErrors(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	boom := errors.New("db down")
	calls := 0
	if _, err := c.Get("k", now, func() (int, error) {
		calls++
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected fill error, got %v", err)
	}

	v, err := c.Get("k", now, func() (int, error) {
		calls++
		return 9, nil
	})
	if err != nil || v != 9 {
		t.Fatalf("Get after error = %d, %v; want 9, nil", v, err)
	}
	if calls != 2 {
		t.Errorf("fill called %d times, want 2", calls)
	}
}

func TestGetDeduplicatesConcurrentFills(t *testing.T) {
	c := New[int](time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fill := func() (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return 5, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Get("k", now, fill); err != nil || v != 5 {
				t.Errorf("Get = %d, %v; want 5, nil", v, err)
			}
		}()
	}

	<-started
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fill called %d times, want 1", got)
	}
}
