package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foxsync/foxsync-go/pkg/log"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/state"
)

const (
	// DefaultInterval is the refresh period when none is configured.
	DefaultInterval = 5 * time.Minute

	// MinInterval and MaxInterval bound the configurable refresh
	// period. Values outside are clamped, not rejected.
	MinInterval = 1 * time.Minute
	MaxInterval = 60 * time.Minute

	// DefaultFailureThreshold is the number of consecutive failed
	// refreshes after which the poller reports a degraded link.
	DefaultFailureThreshold = 3
)

// Config carries the collaborators and tuning for a Poller.
type Config struct {
	// DeviceSN tags audit events with the polled device.
	DeviceSN string

	Cache *state.Cache

	// Interval between refreshes. Zero means DefaultInterval;
	// other values are clamped to [MinInterval, MaxInterval].
	Interval time.Duration

	// FailureThreshold is the consecutive-failure count that flips
	// the poller to degraded. Zero means DefaultFailureThreshold.
	FailureThreshold int

	// OnConditionChange is called with true when the poller enters
	// the degraded condition and false when it recovers. Called
	// from the polling goroutine; keep it quick.
	OnConditionChange func(degraded bool)

	// OnRefresh is called with each successfully fetched snapshot,
	// also from the polling goroutine.
	OnRefresh func(s model.DeviceState)

	Logger *slog.Logger
	Audit  log.Logger
}

// Poller drives periodic cache refreshes. Create with New, then call
// Run on its own goroutine.
type Poller struct {
	deviceSN    string
	cache       *state.Cache
	interval    time.Duration
	threshold   int
	onCondition func(degraded bool)
	onRefresh   func(s model.DeviceState)
	logger      *slog.Logger
	audit       log.Logger

	mu       sync.Mutex
	failures int
	degraded bool
}

// New creates a Poller. Cache is required.
func New(cfg Config) (*Poller, error) {
	if cfg.Cache == nil {
		return nil, errors.New("poller: cache is required")
	}
	interval := cfg.Interval
	switch {
	case interval == 0:
		interval = DefaultInterval
	case interval < MinInterval:
		interval = MinInterval
	case interval > MaxInterval:
		interval = MaxInterval
	}
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := cfg.Audit
	if audit == nil {
		audit = log.NoopLogger{}
	}
	return &Poller{
		deviceSN:    cfg.DeviceSN,
		cache:       cfg.Cache,
		interval:    interval,
		threshold:   threshold,
		onCondition: cfg.OnConditionChange,
		onRefresh:   cfg.OnRefresh,
		logger:      logger,
		audit:       audit,
	}, nil
}

// Interval returns the effective refresh period after clamping.
func (p *Poller) Interval() time.Duration { return p.interval }

// Degraded reports whether consecutive failures have crossed the
// threshold without a success since.
func (p *Poller) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

// ConsecutiveFailures returns the failed-tick count since the last
// successful refresh.
func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Run refreshes immediately, then on every interval tick until ctx is
// cancelled. It always returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap, err := p.cache.Refresh(ctx)
	if err != nil {
		p.recordFailure(err)
		return
	}
	p.recordSuccess()
	if p.onRefresh != nil {
		p.onRefresh(snap)
	}
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	crossed := !p.degraded && failures >= p.threshold
	if crossed {
		p.degraded = true
	}
	degraded := p.degraded
	callback := p.onCondition
	p.mu.Unlock()

	p.auditPoll(false, failures, degraded, err.Error())
	if crossed {
		p.logger.Error("cloud link degraded",
			"device", p.deviceSN,
			"consecutiveFailures", failures,
			"error", err)
		if callback != nil {
			callback(true)
		}
		return
	}
	p.logger.Warn("refresh failed, keeping last snapshot",
		"device", p.deviceSN,
		"consecutiveFailures", failures,
		"error", err)
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	recovered := p.degraded
	p.failures = 0
	p.degraded = false
	callback := p.onCondition
	p.mu.Unlock()

	p.auditPoll(true, 0, false, "")
	if recovered {
		p.logger.Info("cloud link recovered", "device", p.deviceSN)
		if callback != nil {
			callback(false)
		}
	}
}

func (p *Poller) auditPoll(ok bool, failures int, degraded bool, msg string) {
	ev := log.NewEvent(log.KindPoll)
	ev.DeviceSN = p.deviceSN
	ev.Poll = &log.PollEvent{
		OK:                  ok,
		ConsecutiveFailures: failures,
		Degraded:            degraded,
		Message:             msg,
	}
	p.audit.Log(ev)
}
