package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/foxsync/foxsync-go/pkg/api"
	"github.com/foxsync/foxsync-go/pkg/log"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/staging"
	"github.com/foxsync/foxsync-go/pkg/state"
)

// Outcome is the result of a successful Commit.
type Outcome uint8

const (
	// OutcomeNoOp means the staged value already matched the
	// remote state and no call was issued.
	OutcomeNoOp Outcome = iota
	// OutcomeCommitted means a write was issued and confirmed.
	OutcomeCommitted
)

func (o Outcome) String() string {
	if o == OutcomeCommitted {
		return "committed"
	}
	return "noop"
}

// Writer is the slice of the cloud client the engine issues writes
// through. *api.Client satisfies it.
type Writer interface {
	SetSetting(ctx context.Context, sn string, key model.SettingKey, value model.SettingValue) error
	SetScheduler(ctx context.Context, sn string, groups model.ScheduleSet) error
}

// Config carries the collaborators for an Engine.
type Config struct {
	// DeviceSN is the inverter serial all commits target.
	DeviceSN string

	Writer Writer
	Store  *staging.Store
	Cache  *state.Cache

	// Ranges bounds SoC and power fields of schedule groups. The
	// zero value falls back to model.DefaultRanges.
	Ranges model.Ranges

	// Logger receives operational messages. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Audit receives one commit event per attempt. Defaults to a
	// no-op logger.
	Audit log.Logger
}

// Engine commits staged values to the cloud, one unit at a time.
type Engine struct {
	deviceSN string
	writer   Writer
	store    *staging.Store
	cache    *state.Cache
	ranges   model.Ranges
	logger   *slog.Logger
	audit    log.Logger

	mu     sync.Mutex
	inUnit map[model.UnitID]*sync.Mutex
}

// New creates an Engine. Writer, Store and Cache are required.
func New(cfg Config) (*Engine, error) {
	if cfg.DeviceSN == "" {
		return nil, errors.New("engine: device serial is required")
	}
	if cfg.Writer == nil || cfg.Store == nil || cfg.Cache == nil {
		return nil, errors.New("engine: writer, store and cache are required")
	}
	ranges := cfg.Ranges
	if ranges == (model.Ranges{}) {
		ranges = model.DefaultRanges()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := cfg.Audit
	if audit == nil {
		audit = log.NoopLogger{}
	}
	return &Engine{
		deviceSN: cfg.DeviceSN,
		writer:   cfg.Writer,
		store:    cfg.Store,
		cache:    cfg.Cache,
		ranges:   ranges,
		logger:   logger,
		audit:    audit,
		inUnit:   make(map[model.UnitID]*sync.Mutex),
	}, nil
}

// Commit pushes the staged value for id to the cloud. When the unit
// is not dirty no call is issued and OutcomeNoOp is returned. On
// failure the staged value and dirty state are preserved, the error
// is recorded as the unit's last error, and a *CommitError describes
// what went wrong.
func (e *Engine) Commit(ctx context.Context, id model.UnitID) (Outcome, error) {
	unlock := e.lockUnit(id)
	defer unlock()

	staged, revision, ok := e.store.Staged(id)
	if !ok || !e.store.IsDirty(id) {
		// Nothing staged, or the staged value already matches the
		// remote state. Committing again after a success lands here.
		e.auditCommit(id, OutcomeNoOp.String(), 0)
		return OutcomeNoOp, nil
	}

	if err := e.validate(id, staged); err != nil {
		e.store.SetLastError(id, err)
		e.auditCommit(id, KindRejected.String(), 0)
		return OutcomeNoOp, err
	}
	e.warnOnConflictRisk(id, staged)

	if err := e.write(ctx, id, staged); err != nil {
		cerr := e.classify(id, err)
		e.store.SetLastError(id, cerr)
		e.auditCommit(id, cerr.Kind.String(), cerr.Errno)
		e.logger.Warn("commit failed",
			"unit", string(id),
			"kind", cerr.Kind.String(),
			"error", err)
		return OutcomeNoOp, cerr
	}

	e.confirm(id, staged)
	if !e.store.ClearDirty(id, revision) {
		// A newer value was staged while the write was in
		// flight. It stays dirty and gets its own commit.
		e.logger.Debug("staged value superseded during commit", "unit", string(id))
	}
	e.auditCommit(id, OutcomeCommitted.String(), 0)
	e.logger.Info("committed", "unit", string(id), "value", staged.String())
	return OutcomeCommitted, nil
}

// CommitAll commits every dirty unit in turn and returns the first
// error encountered, after attempting the rest.
func (e *Engine) CommitAll(ctx context.Context) error {
	var firstErr error
	for _, id := range e.store.DirtyUnits() {
		if ctx.Err() != nil {
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break
		}
		if _, err := e.Commit(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) lockUnit(id model.UnitID) func() {
	e.mu.Lock()
	m := e.inUnit[id]
	if m == nil {
		m = &sync.Mutex{}
		e.inUnit[id] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (e *Engine) validate(id model.UnitID, v staging.Value) error {
	if set, ok := v.Schedule(); ok {
		if err := set.Validate(e.ranges); err != nil {
			return &CommitError{Kind: KindRejected, Unit: id, err: err}
		}
		return nil
	}
	key, ok := model.SettingKeyOf(id)
	if !ok {
		return &CommitError{Kind: KindRejected, Unit: id, err: errors.New("staged value does not match unit")}
	}
	if key == model.SettingWorkMode {
		sv, _ := v.Setting()
		if _, err := model.ParseWorkMode(sv.Raw); err != nil {
			return &CommitError{Kind: KindRejected, Unit: id, err: err}
		}
	}
	return nil
}

// warnOnConflictRisk flags work mode writes while the scheduler is
// active. The cloud rejects those with an unsupported-function code,
// so the attempt proceeds but the operator gets a heads-up first.
func (e *Engine) warnOnConflictRisk(id model.UnitID, v staging.Value) {
	key, ok := model.SettingKeyOf(id)
	if !ok || key != model.SettingWorkMode {
		return
	}
	if enabled, known := e.cache.SchedulerEnabled(); known && enabled {
		sv, _ := v.Setting()
		e.logger.Warn("scheduler is active; work mode write will likely be refused",
			"device", e.deviceSN,
			"workMode", sv.Raw)
	}
}

func (e *Engine) write(ctx context.Context, id model.UnitID, v staging.Value) error {
	if set, ok := v.Schedule(); ok {
		return e.writer.SetScheduler(ctx, e.deviceSN, set)
	}
	key, _ := model.SettingKeyOf(id)
	sv, _ := v.Setting()
	return e.writer.SetSetting(ctx, e.deviceSN, key, sv)
}

// confirm applies the written value to the cache so the unit reads
// clean without a read-back call.
func (e *Engine) confirm(id model.UnitID, v staging.Value) {
	if set, ok := v.Schedule(); ok {
		e.cache.ApplyScheduler(set)
		return
	}
	key, _ := model.SettingKeyOf(id)
	sv, _ := v.Setting()
	e.cache.ApplySetting(key, sv)
}

func (e *Engine) classify(id model.UnitID, err error) *CommitError {
	ce := &CommitError{Unit: id, err: err}
	switch {
	case api.IsConflict(err):
		ce.Kind = KindConflict
		ce.Errno = api.ErrnoUnsupportedFunction
		ce.Guidance = "disable the inverter schedule before changing the work mode"
	case api.IsRateLimited(err):
		ce.Kind = KindRateLimited
		ce.Errno = api.ErrnoOf(err)
	case api.IsTransient(err):
		ce.Kind = KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		ce.Kind = KindTransient
	case errors.Is(err, api.ErrAuth):
		ce.Kind = KindRejected
	default:
		if errno := api.ErrnoOf(err); errno > 0 {
			ce.Kind = KindRejected
			ce.Errno = errno
		} else {
			ce.Kind = KindUnknown
		}
	}
	return ce
}

func (e *Engine) auditCommit(id model.UnitID, outcome string, errno int) {
	ev := log.NewEvent(log.KindCommit)
	ev.DeviceSN = e.deviceSN
	ev.Commit = &log.CommitEvent{
		Unit:    string(id),
		Outcome: outcome,
		Errno:   errno,
	}
	e.audit.Log(ev)
}
