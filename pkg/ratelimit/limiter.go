package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Limiter defaults.
const (
	// DefaultDailyQuota is the per-account daily call allowance.
	DefaultDailyQuota = 1440

	// DefaultMinInterval is the minimum spacing between call starts.
	DefaultMinInterval = 2 * time.Second
)

// ErrInvalidConfig is returned for nonsensical limiter configuration.
var ErrInvalidConfig = errors.New("invalid limiter configuration")

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }

// Config holds limiter configuration.
type Config struct {
	// DailyQuota is the self-imposed calls-per-day budget.
	// Zero means DefaultDailyQuota; negative disables the budget.
	DailyQuota int

	// MinInterval is the minimum spacing between call starts.
	// Zero means DefaultMinInterval.
	MinInterval time.Duration

	// Location defines the provider's day boundary for the budget
	// reset. Defaults to UTC.
	Location *time.Location

	// Clock overrides the time source (tests only).
	Clock Clock
}

// Stats is a point-in-time view of the budget state.
type Stats struct {
	// CallsUsedToday is the number of calls started since the last
	// day-boundary reset.
	CallsUsedToday int

	// DailyQuota is the configured budget (0 = unlimited).
	DailyQuota int

	// WindowStart is the start of the current budget day.
	WindowStart time.Time

	// CallsLast24h is the rolling 24h count from the Tracker.
	CallsLast24h int

	// Waiting is the number of callers queued at the gate.
	Waiting int
}

// Remaining returns the calls left in the current budget day.
// Returns -1 when no budget is configured.
func (s Stats) Remaining() int {
	if s.DailyQuota <= 0 {
		return -1
	}
	if r := s.DailyQuota - s.CallsUsedToday; r > 0 {
		return r
	}
	return 0
}

type waiter struct {
	ready chan struct{}
}

// Limiter is the single chokepoint for outbound cloud calls. Exactly
// one call occupies the gate at a time, for the duration of its
// network round trip; everyone else queues in FIFO order.
type Limiter struct {
	mu sync.Mutex

	quota       int
	minInterval time.Duration
	loc         *time.Location
	clock       Clock

	busy          bool
	queue         []*waiter
	callsUsed     int
	windowStart   time.Time
	lastCallStart time.Time

	tracker *Tracker
}

// NewLimiter creates a limiter from the given configuration.
func NewLimiter(cfg Config) (*Limiter, error) {
	if cfg.MinInterval < 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.DailyQuota == 0 {
		cfg.DailyQuota = DefaultDailyQuota
	}
	if cfg.DailyQuota < 0 {
		cfg.DailyQuota = 0 // unlimited
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}

	l := &Limiter{
		quota:       cfg.DailyQuota,
		minInterval: cfg.MinInterval,
		loc:         cfg.Location,
		clock:       cfg.Clock,
		tracker:     NewTracker(),
	}
	l.windowStart = dayStart(l.clock.Now(), l.loc)
	return l, nil
}

// Do runs fn as one budgeted call. It blocks until the caller reaches
// the front of the queue and both the spacing and budget constraints
// clear, then invokes fn while holding the gate. If ctx is cancelled
// before fn starts, the call is simply not made and no budget is
// consumed.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	if err := l.waitConstraints(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Stats returns a snapshot of the budget state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.rollWindowLocked(now)
	return Stats{
		CallsUsedToday: l.callsUsed,
		DailyQuota:     l.quota,
		WindowStart:    l.windowStart,
		CallsLast24h:   l.tracker.CountLast24h(now),
		Waiting:        len(l.queue),
	}
}

// Tracker returns the rolling 24h call tracker.
func (l *Limiter) Tracker() *Tracker { return l.tracker }

// Restore seeds the budget counter from persisted state so a restart
// does not forget calls already spent today. The persisted count only
// applies when its window matches the current budget day, and never
// lowers a count accumulated since startup.
func (l *Limiter) Restore(windowStart time.Time, callsUsed int) {
	if callsUsed <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindowLocked(l.clock.Now())
	if dayStart(windowStart, l.loc).Equal(l.windowStart) && callsUsed > l.callsUsed {
		l.callsUsed = callsUsed
	}
}

// acquire takes the gate, queuing FIFO behind earlier callers.
func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if !l.busy && len(l.queue) == 0 {
		l.busy = true
		l.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.queue = append(l.queue, w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, q := range l.queue {
			if q == w {
				l.queue = append(l.queue[:i:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// The gate was handed to us while we were cancelling;
		// pass it straight to the next waiter.
		l.release()
		return ctx.Err()
	}
}

// release hands the gate to the next queued waiter, or opens it.
func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.queue) > 0 {
		w := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		close(w.ready) // ownership transfers, busy stays true
		return
	}
	l.busy = false
	l.mu.Unlock()
}

// waitConstraints blocks the gate owner until spacing and budget both
// allow a call, then reserves the call. Reset of the daily counter and
// its increment happen under the same lock, so a reset can never
// interleave with an in-flight reservation.
func (l *Limiter) waitConstraints(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.rollWindowLocked(now)

		var delay time.Duration
		switch {
		case l.quota > 0 && l.callsUsed >= l.quota:
			delay = l.windowStart.AddDate(0, 0, 1).Sub(now)
		case !l.lastCallStart.IsZero() && now.Sub(l.lastCallStart) < l.minInterval:
			delay = l.minInterval - now.Sub(l.lastCallStart)
		}

		if delay <= 0 {
			l.callsUsed++
			l.lastCallStart = now
			l.tracker.Record(now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(delay):
		}
	}
}

// rollWindowLocked resets the daily counter when the budget day turns.
func (l *Limiter) rollWindowLocked(now time.Time) {
	start := dayStart(now, l.loc)
	if start.After(l.windowStart) {
		l.windowStart = start
		l.callsUsed = 0
	}
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
