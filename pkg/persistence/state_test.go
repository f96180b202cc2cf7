package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxsync/foxsync-go/pkg/model"
)

func TestStoreSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "state.json"))

	state := &SyncState{
		DeviceSN: "60KH12345",
		Staged: []StagedEntry{
			EntryForSetting(model.SettingUnit(model.SettingWorkMode), model.StringValue("Backup")),
		},
		Budget: &BudgetWindow{
			WindowStart: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			CallsUsed:   42,
		},
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Version != StateVersion {
		t.Errorf("Version = %d, want %d", got.Version, StateVersion)
	}
	if got.DeviceSN != "60KH12345" {
		t.Errorf("DeviceSN = %q", got.DeviceSN)
	}
	if got.Budget == nil || got.Budget.CallsUsed != 42 {
		t.Errorf("Budget = %+v, want 42 calls used", got.Budget)
	}
	if len(got.Staged) != 1 {
		t.Fatalf("Staged entries = %d, want 1", len(got.Staged))
	}

	id, v, err := got.Staged[0].Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if id != model.SettingUnit(model.SettingWorkMode) {
		t.Errorf("unit = %q", id)
	}
	sv, ok := v.Setting()
	if !ok || sv.Raw != "Backup" {
		t.Errorf("setting = %v, %t, want Backup", sv, ok)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() of missing file = %+v, want nil", got)
	}
}

func TestStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)
	if err := store.Save(&SyncState{DeviceSN: "X"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Clear() left the state file behind")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() of missing file error = %v", err)
	}
}

func TestStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore(path).Load(); err == nil {
		t.Error("Load() must reject a newer state version")
	}
}

func TestScheduleEntryRoundTrip(t *testing.T) {
	groups := model.ScheduleSet{
		{
			Enable:       1,
			Start:        model.TimeOfDay{Hour: 1, Minute: 30},
			End:          model.TimeOfDay{Hour: 5, Minute: 0},
			WorkMode:     model.WorkModeForceCharge,
			MinSocOnGrid: 20,
			FdSoc:        20,
			FdPwr:        5000,
			MaxSoc:       100,
		},
	}
	entry := EntryForSchedule(model.UnitScheduler, groups)

	id, v, err := entry.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if id != model.UnitScheduler {
		t.Errorf("unit = %q", id)
	}
	got, ok := v.Schedule()
	if !ok || !got.Equal(groups) {
		t.Errorf("schedule round trip = %v, %t", got, ok)
	}
}

func TestEmptyScheduleEntrySurvives(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	state := &SyncState{
		DeviceSN: "X",
		Staged:   []StagedEntry{EntryForSchedule(model.UnitScheduler, model.ScheduleSet{})},
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Staged) != 1 {
		t.Fatalf("Staged entries = %d, want 1", len(got.Staged))
	}
	_, v, err := got.Staged[0].Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	set, ok := v.Schedule()
	if !ok {
		t.Fatal("entry did not round trip as a schedule")
	}
	if len(set) != 0 {
		t.Errorf("schedule = %v, want empty set", set)
	}
}

func TestUnknownEntryKind(t *testing.T) {
	if _, _, err := (StagedEntry{Unit: "x", Kind: "mystery"}).Value(); err == nil {
		t.Error("Value() of unknown kind must fail")
	}
}
