package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxsync/foxsync-go/pkg/api"
	"github.com/foxsync/foxsync-go/pkg/log"
	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/staging"
	"github.com/foxsync/foxsync-go/pkg/state"
)

type writeCall struct {
	key    model.SettingKey
	value  model.SettingValue
	groups model.ScheduleSet
}

// stubWriter records writes and fails with the configured error.
type stubWriter struct {
	mu      sync.Mutex
	calls   []writeCall
	err     error
	onWrite func()
}

func (w *stubWriter) SetSetting(_ context.Context, _ string, key model.SettingKey, value model.SettingValue) error {
	w.mu.Lock()
	w.calls = append(w.calls, writeCall{key: key, value: value})
	w.mu.Unlock()
	if w.onWrite != nil {
		w.onWrite()
	}
	return w.err
}

func (w *stubWriter) SetScheduler(_ context.Context, _ string, groups model.ScheduleSet) error {
	w.mu.Lock()
	w.calls = append(w.calls, writeCall{groups: groups.Clone()})
	w.mu.Unlock()
	if w.onWrite != nil {
		w.onWrite()
	}
	return w.err
}

func (w *stubWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

type captureAudit struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureAudit) Log(ev log.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func remoteState(workMode string, groups model.ScheduleSet, schedulerEnabled bool) model.DeviceState {
	return model.DeviceState{
		DeviceSN: "60KH12345",
		Settings: map[model.SettingKey]model.Setting{
			model.SettingWorkMode: {Key: model.SettingWorkMode, Value: model.StringValue(workMode)},
		},
		Scheduler: model.SchedulerState{Enabled: schedulerEnabled, Groups: groups},
	}
}

func newFixture(t *testing.T, writer *stubWriter, remote model.DeviceState) (*Engine, *staging.Store, *state.Cache, *captureAudit) {
	t.Helper()
	cache := state.NewCache(nil)
	cache.Replace(remote)
	store := staging.NewStore(cache.Snapshot)
	audit := &captureAudit{}
	eng, err := New(Config{
		DeviceSN: "60KH12345",
		Writer:   writer,
		Store:    store,
		Cache:    cache,
		Audit:    audit,
	})
	require.NoError(t, err)
	return eng, store, cache, audit
}

func TestCommitSetting(t *testing.T) {
	writer := &stubWriter{}
	eng, store, cache, audit := newFixture(t, writer, remoteState("SelfUse", nil, false))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("Backup")))

	outcome, err := eng.Commit(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	require.Equal(t, 1, writer.callCount())
	assert.Equal(t, model.SettingWorkMode, writer.calls[0].key)
	assert.Equal(t, "Backup", writer.calls[0].value.Raw)

	// Optimistic update: the cache now reflects the written value
	// without a read-back call.
	snap, known := cache.Snapshot()
	require.True(t, known)
	assert.Equal(t, "Backup", snap.Settings[model.SettingWorkMode].Value.Raw)
	assert.False(t, store.IsDirty(unit))

	require.Len(t, audit.events, 1)
	assert.Equal(t, "committed", audit.events[0].Commit.Outcome)
}

func TestCommitCleanUnitIsNoOp(t *testing.T) {
	writer := &stubWriter{}
	eng, store, _, audit := newFixture(t, writer, remoteState("SelfUse", nil, false))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("SelfUse")))

	outcome, err := eng.Commit(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, 0, writer.callCount(), "clean unit must not issue a call")
	require.Len(t, audit.events, 1)
	assert.Equal(t, "noop", audit.events[0].Commit.Outcome)
}

func TestCommitIdempotent(t *testing.T) {
	writer := &stubWriter{}
	eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("Backup")))

	outcome, err := eng.Commit(context.Background(), unit)
	require.NoError(t, err)
	require.Equal(t, OutcomeCommitted, outcome)

	// A successful commit consumes the staged value, so repeating it
	// is a clean no-op, not a failure.
	for i := 0; i < 2; i++ {
		outcome, err = eng.Commit(context.Background(), unit)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOp, outcome)
	}
	assert.Equal(t, 1, writer.callCount(), "repeated commits of the same value must not write again")
}

func TestCommitNothingStaged(t *testing.T) {
	writer := &stubWriter{}
	eng, _, _, audit := newFixture(t, writer, remoteState("SelfUse", nil, false))

	outcome, err := eng.Commit(context.Background(), model.SettingUnit(model.SettingMinSoc))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, outcome)
	assert.Equal(t, 0, writer.callCount())
	require.Len(t, audit.events, 1)
	assert.Equal(t, "noop", audit.events[0].Commit.Outcome)
}

func TestCommitFailurePreservesStagedState(t *testing.T) {
	writer := &stubWriter{err: &api.ConnectionError{Err: errors.New("connection reset")}}
	eng, store, cache, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("Backup")))

	_, err := eng.Commit(context.Background(), unit)
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))

	v, _, ok := store.Staged(unit)
	require.True(t, ok, "staged value must survive a failed commit")
	sv, _ := v.Setting()
	assert.Equal(t, "Backup", sv.Raw)
	assert.True(t, store.IsDirty(unit))
	assert.Error(t, store.LastError(unit))

	snap, _ := cache.Snapshot()
	assert.Equal(t, "SelfUse", snap.Settings[model.SettingWorkMode].Value.Raw,
		"cache must not be updated on failure")
}

func TestCommitConflictClassification(t *testing.T) {
	writer := &stubWriter{err: &api.Error{
		Errno:    api.ErrnoUnsupportedFunction,
		Message:  "Unsupported function",
		Endpoint: "/op/v0/device/setting/set",
	}}
	eng, store, _, audit := newFixture(t, writer, remoteState("SelfUse", nil, true))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("Feedin")))

	_, err := eng.Commit(context.Background(), unit)
	require.Error(t, err)

	var ce *CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindConflict, ce.Kind)
	assert.Equal(t, api.ErrnoUnsupportedFunction, ce.Errno)
	assert.Contains(t, ce.Guidance, "disable")
	assert.True(t, store.IsDirty(unit))

	require.Len(t, audit.events, 1)
	assert.Equal(t, "conflict", audit.events[0].Commit.Outcome)
	assert.Equal(t, api.ErrnoUnsupportedFunction, audit.events[0].Commit.Errno)
}

func TestCommitErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limited", &api.Error{Errno: api.ErrnoRequestTooFrequent}, KindRateLimited},
		{"transport", &api.ConnectionError{Err: errors.New("timeout")}, KindTransient},
		{"cancelled", context.Canceled, KindTransient},
		{"auth", api.ErrAuth, KindRejected},
		{"remote validation", &api.Error{Errno: 40257, Message: "parameter error"}, KindRejected},
		{"unclassifiable", errors.New("boom"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			writer := &stubWriter{err: tc.err}
			eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

			unit := model.SettingUnit(model.SettingWorkMode)
			store.Stage(unit, staging.ForSetting(model.StringValue("Backup")))

			_, err := eng.Commit(context.Background(), unit)
			require.Error(t, err)
			assert.Equal(t, tc.want, KindOf(err))
			assert.True(t, store.IsDirty(unit))
		})
	}
}

func TestCommitSchedulerFullReplace(t *testing.T) {
	remoteGroups := model.ScheduleSet{model.DefaultGroup()}
	writer := &stubWriter{}
	eng, store, cache, _ := newFixture(t, writer, remoteState("SelfUse", remoteGroups, true))

	staged := model.ScheduleSet{
		{
			Enable:       1,
			Start:        model.TimeOfDay{Hour: 1, Minute: 0},
			End:          model.TimeOfDay{Hour: 5, Minute: 30},
			WorkMode:     model.WorkModeForceCharge,
			MinSocOnGrid: 20,
			FdSoc:        20,
			FdPwr:        5000,
			MaxSoc:       100,
		},
	}
	store.Stage(model.UnitScheduler, staging.ForSchedule(staged))

	outcome, err := eng.Commit(context.Background(), model.UnitScheduler)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	require.Equal(t, 1, writer.callCount())
	assert.True(t, staged.Equal(writer.calls[0].groups))

	snap, _ := cache.Snapshot()
	assert.True(t, staged.Equal(snap.Scheduler.Groups))
	assert.True(t, snap.Scheduler.Enabled, "enabled flag must survive the optimistic update")
	assert.False(t, store.IsDirty(model.UnitScheduler))
}

func TestCommitEmptyScheduleSet(t *testing.T) {
	remoteGroups := model.ScheduleSet{model.DefaultGroup()}
	writer := &stubWriter{}
	eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", remoteGroups, true))

	store.Stage(model.UnitScheduler, staging.ForSchedule(model.ScheduleSet{}))

	outcome, err := eng.Commit(context.Background(), model.UnitScheduler)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	require.Equal(t, 1, writer.callCount())
	assert.Len(t, writer.calls[0].groups, 0, "empty set must be written as-is, clearing all groups")
}

func TestCommitValidatesBeforeWriting(t *testing.T) {
	writer := &stubWriter{}
	eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

	bad := model.ScheduleSet{
		{
			Enable:       1,
			Start:        model.TimeOfDay{Hour: 1},
			End:          model.TimeOfDay{Hour: 2},
			WorkMode:     model.WorkModeSelfUse,
			MinSocOnGrid: 5, // below MinSoc bound
			FdSoc:        20,
			FdPwr:        5000,
			MaxSoc:       100,
		},
	}
	store.Stage(model.UnitScheduler, staging.ForSchedule(bad))

	_, err := eng.Commit(context.Background(), model.UnitScheduler)
	require.Error(t, err)
	assert.Equal(t, KindRejected, KindOf(err))
	assert.Equal(t, 0, writer.callCount(), "invalid payloads must be refused locally")
}

func TestCommitSupersededValueStaysDirty(t *testing.T) {
	writer := &stubWriter{}
	eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, staging.ForSetting(model.StringValue("Backup")))

	// A new value lands while the first write is in flight.
	writer.onWrite = func() {
		store.Stage(unit, staging.ForSetting(model.StringValue("Feedin")))
	}

	outcome, err := eng.Commit(context.Background(), unit)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)

	assert.True(t, store.IsDirty(unit), "the superseding value must remain dirty")
	v, _, ok := store.Staged(unit)
	require.True(t, ok)
	sv, _ := v.Setting()
	assert.Equal(t, "Feedin", sv.Raw)
}

func TestCommitAll(t *testing.T) {
	writer := &stubWriter{}
	eng, store, _, _ := newFixture(t, writer, remoteState("SelfUse", nil, false))

	store.Stage(model.SettingUnit(model.SettingWorkMode), staging.ForSetting(model.StringValue("Backup")))
	store.Stage(model.SettingUnit(model.SettingMinSoc), staging.ForSetting(model.NumberValue(15)))

	require.NoError(t, eng.CommitAll(context.Background()))
	assert.Equal(t, 2, writer.callCount())
	assert.Empty(t, store.DirtyUnits())
}
