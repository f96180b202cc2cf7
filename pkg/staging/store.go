package staging

import (
	"sync"
	"time"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// SnapshotFunc returns the current remote state snapshot and whether
// it is known yet. Wired to state.Cache.Snapshot.
type SnapshotFunc func() (model.DeviceState, bool)

type unit struct {
	value    Value
	revision uint64
	stagedAt time.Time
	lastErr  error
}

// Store holds the provisional, unsent edits per unit. Safe for
// concurrent use; per-unit operations are serialized by the store
// lock, so a commit in flight always reads one consistent value.
type Store struct {
	mu       sync.RWMutex
	units    map[model.UnitID]*unit
	snapshot SnapshotFunc
}

// NewStore creates a staging store that computes dirtiness against
// the given snapshot source.
func NewStore(snapshot SnapshotFunc) *Store {
	return &Store{
		units:    make(map[model.UnitID]*unit),
		snapshot: snapshot,
	}
}

// Stage records a staged value for the unit, overwriting any prior
// staged value (last write wins; schedule sets are replaced whole,
// never merged). Returns the new revision.
func (s *Store) Stage(id model.UnitID, v Value) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.units[id]
	if u == nil {
		u = &unit{}
		s.units[id] = u
	}
	u.value = v
	u.revision++
	u.stagedAt = time.Now()
	u.lastErr = nil
	return u.revision
}

// Staged returns the staged value and its revision. ok is false when
// nothing is staged for the unit.
func (s *Store) Staged(id model.UnitID) (v Value, revision uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := s.units[id]
	if u == nil || u.value.IsZero() {
		return Value{}, 0, false
	}
	return u.value, u.revision, true
}

// IsDirty reports whether the unit's staged value differs from the
// last known remote value, computed at call time. A unit with no
// staged value is never dirty; a staged value compared against an
// unknown snapshot always is.
func (s *Store) IsDirty(id model.UnitID) bool {
	staged, _, ok := s.Staged(id)
	if !ok {
		return false
	}

	snap, known := s.snapshot()
	if !known {
		return true
	}
	remote, ok := remoteValueFor(id, snap)
	if !ok {
		return true
	}
	return !staged.Equal(remote)
}

// ClearDirty drops the staged value for the unit, but only when the
// given revision is still current. A re-stage between commit and
// confirmation bumps the revision, so the newer edit survives and the
// unit stays dirty. Returns true when the unit was cleared.
func (s *Store) ClearDirty(id model.UnitID, revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.units[id]
	if u == nil || u.revision != revision {
		return false
	}
	u.value = Value{}
	u.lastErr = nil
	return true
}

// Discard drops the staged value unconditionally (operator "restore").
func (s *Store) Discard(id model.UnitID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u := s.units[id]; u != nil {
		u.value = Value{}
		u.lastErr = nil
		u.revision++
	}
}

// SetLastError records the most recent commit failure for the unit.
func (s *Store) SetLastError(id model.UnitID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.units[id]
	if u == nil {
		u = &unit{}
		s.units[id] = u
	}
	u.lastErr = err
}

// LastError returns the most recent commit failure, or nil.
func (s *Store) LastError(id model.UnitID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.units[id]; u != nil {
		return u.lastErr
	}
	return nil
}

// DirtyUnits lists the units that are currently dirty.
func (s *Store) DirtyUnits() []model.UnitID {
	s.mu.RLock()
	ids := make([]model.UnitID, 0, len(s.units))
	for id := range s.units {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	dirty := ids[:0]
	for _, id := range ids {
		if s.IsDirty(id) {
			dirty = append(dirty, id)
		}
	}
	return dirty
}

// remoteValueFor extracts the remote counterpart of a staged unit
// from a snapshot. ok is false when the snapshot has no value for the
// unit (which counts as dirty).
func remoteValueFor(id model.UnitID, snap model.DeviceState) (Value, bool) {
	if id == model.UnitScheduler {
		return ForSchedule(snap.Scheduler.Groups), true
	}
	key, ok := model.SettingKeyOf(id)
	if !ok {
		return Value{}, false
	}
	setting, ok := snap.Setting(key)
	if !ok {
		return Value{}, false
	}
	return ForSetting(setting.Value), true
}
