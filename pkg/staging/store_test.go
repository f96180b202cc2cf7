package staging

import (
	"errors"
	"sync"
	"testing"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// snapshotStub is a mutable snapshot source for tests.
type snapshotStub struct {
	mu    sync.Mutex
	state model.DeviceState
	known bool
}

func (s *snapshotStub) set(state model.DeviceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.known = true
}

func (s *snapshotStub) fn() SnapshotFunc {
	return func() (model.DeviceState, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.state, s.known
	}
}

func remoteState(workMode string, groups model.ScheduleSet) model.DeviceState {
	return model.DeviceState{
		DeviceSN: "SN1",
		Settings: map[model.SettingKey]model.Setting{
			model.SettingWorkMode: {Key: model.SettingWorkMode, Value: model.StringValue(workMode)},
		},
		Scheduler: model.SchedulerState{Enabled: false, Groups: groups},
	}
}

func TestIsDirtyComputedAgainstSnapshot(t *testing.T) {
	snap := &snapshotStub{}
	snap.set(remoteState("SelfUse", nil))
	store := NewStore(snap.fn())

	unit := model.SettingUnit(model.SettingWorkMode)

	// Staging the remote value: not dirty.
	store.Stage(unit, ForSetting(model.StringValue("SelfUse")))
	if store.IsDirty(unit) {
		t.Error("IsDirty = true for staged value equal to remote")
	}

	// Staging a different value: dirty.
	store.Stage(unit, ForSetting(model.StringValue("Backup")))
	if !store.IsDirty(unit) {
		t.Error("IsDirty = false for diverging staged value")
	}

	// The remote catching up flips dirty off without any local call.
	snap.set(remoteState("Backup", nil))
	if store.IsDirty(unit) {
		t.Error("IsDirty = true after remote caught up")
	}
}

func TestIsDirtyUnknownSnapshot(t *testing.T) {
	snap := &snapshotStub{} // never known
	store := NewStore(snap.fn())

	unit := model.SettingUnit(model.SettingWorkMode)
	store.Stage(unit, ForSetting(model.StringValue("SelfUse")))

	// No snapshot yet: equality cannot be concluded, so dirty.
	if !store.IsDirty(unit) {
		t.Error("IsDirty = false against unknown snapshot")
	}
}

func TestIsDirtyNothingStaged(t *testing.T) {
	snap := &snapshotStub{}
	snap.set(remoteState("SelfUse", nil))
	store := NewStore(snap.fn())

	if store.IsDirty(model.UnitScheduler) {
		t.Error("IsDirty = true with nothing staged")
	}
}

func TestScheduleDirtyAndEmptySet(t *testing.T) {
	group := model.DefaultGroup()
	snap := &snapshotStub{}
	snap.set(remoteState("SelfUse", model.ScheduleSet{group}))
	store := NewStore(snap.fn())

	// Staging the same single group: clean.
	store.Stage(model.UnitScheduler, ForSchedule(model.ScheduleSet{group}))
	if store.IsDirty(model.UnitScheduler) {
		t.Error("IsDirty = true for identical schedule")
	}

	// Staging an empty set (clear all) against one remote group: dirty.
	store.Stage(model.UnitScheduler, ForSchedule(model.ScheduleSet{}))
	if !store.IsDirty(model.UnitScheduler) {
		t.Error("IsDirty = false for empty set against non-empty remote")
	}

	// Remote now empty too: clean again.
	snap.set(remoteState("SelfUse", model.ScheduleSet{}))
	if store.IsDirty(model.UnitScheduler) {
		t.Error("IsDirty = true for empty set against empty remote")
	}
}

func TestStageOverwrites(t *testing.T) {
	snap := &snapshotStub{}
	store := NewStore(snap.fn())

	store.Stage(model.UnitScheduler, ForSchedule(model.ScheduleSet{model.DefaultGroup()}))
	store.Stage(model.UnitScheduler, ForSchedule(model.ScheduleSet{}))

	v, _, ok := store.Staged(model.UnitScheduler)
	if !ok {
		t.Fatal("Staged() ok = false")
	}
	set, _ := v.Schedule()
	if len(set) != 0 {
		t.Errorf("staged schedule has %d groups, want 0 (last write wins)", len(set))
	}
}

func TestClearDirtyRevisionGuard(t *testing.T) {
	snap := &snapshotStub{}
	store := NewStore(snap.fn())
	unit := model.SettingUnit(model.SettingWorkMode)

	rev := store.Stage(unit, ForSetting(model.StringValue("Backup")))

	// A re-stage after the commit read makes the old revision stale.
	store.Stage(unit, ForSetting(model.StringValue("Feedin")))
	if store.ClearDirty(unit, rev) {
		t.Error("ClearDirty succeeded with stale revision")
	}
	if _, _, ok := store.Staged(unit); !ok {
		t.Error("stale ClearDirty dropped the newer staged value")
	}

	// Clearing with the current revision works.
	_, current, _ := store.Staged(unit)
	if !store.ClearDirty(unit, current) {
		t.Error("ClearDirty failed with current revision")
	}
	if _, _, ok := store.Staged(unit); ok {
		t.Error("staged value survived a valid ClearDirty")
	}
}

func TestLastError(t *testing.T) {
	snap := &snapshotStub{}
	store := NewStore(snap.fn())
	unit := model.SettingUnit(model.SettingWorkMode)

	wantErr := errors.New("conflict")
	store.Stage(unit, ForSetting(model.StringValue("Backup")))
	store.SetLastError(unit, wantErr)

	if got := store.LastError(unit); !errors.Is(got, wantErr) {
		t.Errorf("LastError = %v, want %v", got, wantErr)
	}

	// A fresh stage clears the stale error.
	store.Stage(unit, ForSetting(model.StringValue("Feedin")))
	if got := store.LastError(unit); got != nil {
		t.Errorf("LastError after re-stage = %v, want nil", got)
	}
}

func TestDirtyUnits(t *testing.T) {
	snap := &snapshotStub{}
	snap.set(remoteState("SelfUse", nil))
	store := NewStore(snap.fn())

	clean := model.SettingUnit(model.SettingWorkMode)
	store.Stage(clean, ForSetting(model.StringValue("SelfUse")))
	store.Stage(model.UnitScheduler, ForSchedule(model.ScheduleSet{model.DefaultGroup()}))

	dirty := store.DirtyUnits()
	if len(dirty) != 1 || dirty[0] != model.UnitScheduler {
		t.Errorf("DirtyUnits = %v, want [scheduler]", dirty)
	}
}

func TestDiscard(t *testing.T) {
	snap := &snapshotStub{}
	store := NewStore(snap.fn())
	unit := model.SettingUnit(model.SettingMaxSoc)

	store.Stage(unit, ForSetting(model.NumberValue(90)))
	store.Discard(unit)

	if _, _, ok := store.Staged(unit); ok {
		t.Error("Staged() ok = true after Discard")
	}
	if store.IsDirty(unit) {
		t.Error("IsDirty = true after Discard")
	}
}
