package state

import (
	"context"
	"sync"
	"time"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// Fetcher assembles a complete device state snapshot from the remote
// API. Implementations may issue several calls; the cache only cares
// that the returned document is complete.
type Fetcher interface {
	FetchState(ctx context.Context) (model.DeviceState, error)
}

// Cache is the single holder of the last known remote device state.
// The poller refreshes it; everything else reads it. Safe for
// concurrent use.
type Cache struct {
	mu       sync.RWMutex
	snapshot model.DeviceState
	known    bool

	fetcher Fetcher
}

// NewCache creates a cache that refreshes through the given fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher}
}

// Snapshot returns the last known state. It never blocks on I/O. The
// second return is false until the first successful refresh; callers
// must not treat the zero-valued state as real device data.
func (c *Cache) Snapshot() (model.DeviceState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.known {
		return model.DeviceState{}, false
	}
	return c.snapshot.Clone(), true
}

// Refresh fetches a fresh snapshot and swaps it in atomically.
func (c *Cache) Refresh(ctx context.Context) (model.DeviceState, error) {
	fresh, err := c.fetcher.FetchState(ctx)
	if err != nil {
		return model.DeviceState{}, err
	}

	c.Replace(fresh)
	return fresh, nil
}

// Replace swaps in a complete snapshot.
func (c *Cache) Replace(s model.DeviceState) {
	clone := s.Clone()
	c.mu.Lock()
	c.snapshot = clone
	c.known = true
	c.mu.Unlock()
}

// ApplySetting updates a single setting value in place after a
// confirmed remote write. This optimistic update avoids a read-back
// call against the quota. A no-op before the first refresh.
func (c *Cache) ApplySetting(key model.SettingKey, value model.SettingValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known {
		return
	}

	next := c.snapshot.Clone()
	if next.Settings == nil {
		next.Settings = make(map[model.SettingKey]model.Setting, 1)
	}
	setting := next.Settings[key]
	setting.Key = key
	setting.Value = value
	next.Settings[key] = setting
	next.FetchedAt = time.Now()
	c.snapshot = next
}

// ApplyScheduler replaces the scheduler groups after a confirmed
// remote write. The enabled flag is left as last fetched; the write
// endpoint does not report it.
func (c *Cache) ApplyScheduler(groups model.ScheduleSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known {
		return
	}

	next := c.snapshot.Clone()
	next.Scheduler.Groups = groups.Clone()
	next.FetchedAt = time.Now()
	c.snapshot = next
}

// SchedulerEnabled reports the last known scheduler-enabled flag.
// The second return is false before the first refresh.
func (c *Cache) SchedulerEnabled() (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Scheduler.Enabled, c.known
}
