package ratelimit

import (
	"sync"
	"time"
)

// Tracker counts calls in a rolling 24 hour window using hourly
// buckets. It is independent of the day-boundary budget: the budget
// answers "may I call now", the tracker answers "how busy was the
// account over the last day" for diagnostics surfaces.
type Tracker struct {
	mu      sync.Mutex
	buckets map[int64]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(map[int64]int)}
}

// Record counts one call at the given time.
func (t *Tracker) Record(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buckets[bucketFor(now)]++
	t.pruneLocked(now)
}

// CountLast24h returns the number of calls recorded in the 24 hours
// up to now.
func (t *Tracker) CountLast24h(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked(now)
	cutoff := bucketFor(now.Add(-24 * time.Hour))
	total := 0
	for bucket, count := range t.buckets {
		if bucket >= cutoff {
			total += count
		}
	}
	return total
}

// Snapshot returns a copy of the bucket map for diagnostics.
func (t *Tracker) Snapshot() map[int64]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int64]int, len(t.buckets))
	for bucket, count := range t.buckets {
		out[bucket] = count
	}
	return out
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := bucketFor(now.Add(-24 * time.Hour))
	for bucket := range t.buckets {
		if bucket < cutoff {
			delete(t.buckets, bucket)
		}
	}
}

func bucketFor(t time.Time) int64 {
	return t.Unix() / 3600
}
