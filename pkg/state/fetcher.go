package state

import (
	"context"
	"time"

	"github.com/foxsync/foxsync-go/pkg/api"
	"github.com/foxsync/foxsync-go/pkg/model"
)

// CloudFetcher assembles the device state from the cloud API. Each
// refresh costs one call for realtime data, one for the scheduler
// (when supported), one for the battery SoC bounds, and one per
// tracked setting key.
type CloudFetcher struct {
	// Client is the cloud API client.
	Client *api.Client

	// DeviceSN selects the device.
	DeviceSN string

	// Variables limits the realtime query; nil requests everything.
	Variables []string

	// TrackedSettings lists the setting keys to read on each refresh.
	TrackedSettings []model.SettingKey

	// SchedulerSupported gates the scheduler read; discovery probes
	// the device's function flags to set it.
	SchedulerSupported bool
}

// FetchState implements Fetcher.
func (f *CloudFetcher) FetchState(ctx context.Context) (model.DeviceState, error) {
	s := model.DeviceState{
		DeviceSN:  f.DeviceSN,
		FetchedAt: time.Now(),
		Settings:  make(map[model.SettingKey]model.Setting, len(f.TrackedSettings)),
	}

	realtime, err := f.Client.RealtimeSnapshot(ctx, f.DeviceSN, f.Variables)
	if err != nil {
		return model.DeviceState{}, err
	}
	s.Realtime = realtime

	if f.SchedulerSupported {
		scheduler, err := f.Client.GetScheduler(ctx, f.DeviceSN)
		if err != nil {
			return model.DeviceState{}, err
		}
		s.Scheduler = scheduler
	}

	battery, err := f.Client.BatterySoc(ctx, f.DeviceSN)
	if err != nil {
		return model.DeviceState{}, err
	}
	s.Battery = battery

	for _, key := range f.TrackedSettings {
		setting, err := f.Client.GetSetting(ctx, f.DeviceSN, key)
		if err != nil {
			return model.DeviceState{}, err
		}
		s.Settings[key] = setting
	}

	return s, nil
}

// Compile-time interface satisfaction check.
var _ Fetcher = (*CloudFetcher)(nil)
