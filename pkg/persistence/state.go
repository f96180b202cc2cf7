package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/staging"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// Staged entry kinds.
const (
	KindSetting  = "setting"
	KindSchedule = "schedule"
)

// SyncState is the persisted document: uncommitted intent plus the
// call-budget window.
type SyncState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// DeviceSN guards against feeding one device's intent to
	// another.
	DeviceSN string `json:"device_sn"`

	// Staged holds the uncommitted values, one per unit.
	Staged []StagedEntry `json:"staged,omitempty"`

	// Budget is the daily call-budget window at save time.
	Budget *BudgetWindow `json:"budget,omitempty"`
}

// StagedEntry is one persisted staged value.
type StagedEntry struct {
	// Unit is the unit identifier.
	Unit string `json:"unit"`

	// Kind is KindSetting or KindSchedule. An empty schedule list
	// with KindSchedule means "clear all groups"; that is distinct
	// from the entry being absent.
	Kind string `json:"kind"`

	// Setting is the raw setting value for KindSetting entries.
	Setting string `json:"setting,omitempty"`

	// Schedule holds the groups for KindSchedule entries.
	Schedule []ScheduleGroup `json:"schedule,omitempty"`
}

// ScheduleGroup mirrors model.ScheduleGroup for JSON serialization.
type ScheduleGroup struct {
	Enable       int     `json:"enable"`
	StartHour    int     `json:"start_hour"`
	StartMinute  int     `json:"start_minute"`
	EndHour      int     `json:"end_hour"`
	EndMinute    int     `json:"end_minute"`
	WorkMode     string  `json:"work_mode"`
	MinSocOnGrid int     `json:"min_soc_on_grid"`
	FdSoc        int     `json:"fd_soc"`
	FdPwr        float64 `json:"fd_pwr"`
	MaxSoc       int     `json:"max_soc"`
}

// BudgetWindow captures the daily quota state for restoring after a
// restart.
type BudgetWindow struct {
	// WindowStart is the start of the budget day.
	WindowStart time.Time `json:"window_start"`

	// CallsUsed is the count of calls started in that window.
	CallsUsed int `json:"calls_used"`
}

// EntryForSetting builds a persisted entry for a setting unit.
func EntryForSetting(id model.UnitID, value model.SettingValue) StagedEntry {
	return StagedEntry{Unit: string(id), Kind: KindSetting, Setting: value.Raw}
}

// EntryForSchedule builds a persisted entry for the scheduler unit.
func EntryForSchedule(id model.UnitID, groups model.ScheduleSet) StagedEntry {
	out := make([]ScheduleGroup, len(groups))
	for i, g := range groups {
		out[i] = ScheduleGroup{
			Enable:       g.Enable,
			StartHour:    g.Start.Hour,
			StartMinute:  g.Start.Minute,
			EndHour:      g.End.Hour,
			EndMinute:    g.End.Minute,
			WorkMode:     string(g.WorkMode),
			MinSocOnGrid: g.MinSocOnGrid,
			FdSoc:        g.FdSoc,
			FdPwr:        g.FdPwr,
			MaxSoc:       g.MaxSoc,
		}
	}
	return StagedEntry{Unit: string(id), Kind: KindSchedule, Schedule: out}
}

// Value converts the entry back to its unit ID and staged value.
func (e StagedEntry) Value() (model.UnitID, staging.Value, error) {
	id := model.UnitID(e.Unit)
	switch e.Kind {
	case KindSetting:
		return id, staging.ForSetting(model.StringValue(e.Setting)), nil
	case KindSchedule:
		groups := make(model.ScheduleSet, len(e.Schedule))
		for i, g := range e.Schedule {
			groups[i] = model.ScheduleGroup{
				Enable:       g.Enable,
				Start:        model.TimeOfDay{Hour: g.StartHour, Minute: g.StartMinute},
				End:          model.TimeOfDay{Hour: g.EndHour, Minute: g.EndMinute},
				WorkMode:     model.WorkMode(g.WorkMode),
				MinSocOnGrid: g.MinSocOnGrid,
				FdSoc:        g.FdSoc,
				FdPwr:        g.FdPwr,
				MaxSoc:       g.MaxSoc,
			}
		}
		return id, staging.ForSchedule(groups), nil
	default:
		return id, staging.Value{}, fmt.Errorf("unknown staged entry kind %q", e.Kind)
	}
}

// Store manages persistence of sync state to a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save persists the state to disk atomically.
func (s *Store) Save(state *SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".foxsync-state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *Store) Load() (*SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &SyncState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, errors.New("state file written by a newer version")
	}

	return state, nil
}

// Clear removes the state file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
