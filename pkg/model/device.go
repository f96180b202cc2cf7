package model

import (
	"fmt"
	"time"
)

// UnitID identifies one independently staged and committed unit:
// either a single device setting or the scheduler as a whole.
type UnitID string

// UnitScheduler is the unit ID for the full schedule set.
const UnitScheduler UnitID = "scheduler"

const settingUnitPrefix = "setting:"

// SettingUnit returns the unit ID for a canonical setting key.
func SettingUnit(key SettingKey) UnitID {
	return UnitID(settingUnitPrefix + string(key))
}

// SettingKeyOf extracts the setting key from a setting unit ID.
// The second return is false for the scheduler unit.
func SettingKeyOf(id UnitID) (SettingKey, bool) {
	s := string(id)
	if len(s) > len(settingUnitPrefix) && s[:len(settingUnitPrefix)] == settingUnitPrefix {
		return SettingKey(s[len(settingUnitPrefix):]), true
	}
	return "", false
}

// Inverter is one device as returned by the account device list.
type Inverter struct {
	DeviceSN    string
	ModuleSN    string
	StationID   string
	StationName string
	Status      int
	HasBattery  bool
	DeviceType  string
	ProductType string
}

// InverterDetail is the semi-static device detail document.
type InverterDetail struct {
	Inverter

	ManagerVersion  string
	MasterVersion   string
	SlaveVersion    string
	HardwareVersion string
	Capacity        float64

	// Function flags reported by the cloud, e.g. "scheduler": true.
	Function map[string]bool
}

// SupportsScheduler reports whether the device exposes the scheduler.
// Devices without a function map are assumed to support it, matching
// the cloud's own default.
func (d InverterDetail) SupportsScheduler() bool {
	if d.Function == nil {
		return true
	}
	return d.Function["scheduler"]
}

// BatterySoc holds the battery SoC range settings.
type BatterySoc struct {
	MinSoc       int
	MinSocOnGrid int
}

// RealtimeValue is one live measurement variable.
type RealtimeValue struct {
	Variable string
	Unit     string
	Value    float64
}

// DeviceState is the full snapshot of remote device state held by the
// cache. A snapshot is immutable once published; producers build a new
// one and swap it in whole.
type DeviceState struct {
	// DeviceSN identifies the device this snapshot belongs to.
	DeviceSN string

	// FetchedAt is when the snapshot was assembled.
	FetchedAt time.Time

	// Settings maps canonical keys to their last known remote values.
	Settings map[SettingKey]Setting

	// Scheduler is the last known scheduler configuration.
	Scheduler SchedulerState

	// Battery holds the SoC range bounds.
	Battery BatterySoc

	// Realtime holds the live measurement variables by name.
	Realtime map[string]RealtimeValue
}

// Clone returns a deep copy of the snapshot.
func (s DeviceState) Clone() DeviceState {
	out := s
	out.Scheduler = s.Scheduler.Clone()
	if s.Settings != nil {
		out.Settings = make(map[SettingKey]Setting, len(s.Settings))
		for k, v := range s.Settings {
			out.Settings[k] = v
		}
	}
	if s.Realtime != nil {
		out.Realtime = make(map[string]RealtimeValue, len(s.Realtime))
		for k, v := range s.Realtime {
			out.Realtime[k] = v
		}
	}
	return out
}

// Setting returns the last known value for a key, if present.
func (s DeviceState) Setting(key SettingKey) (Setting, bool) {
	v, ok := s.Settings[key]
	return v, ok
}

// String returns a short summary for logs.
func (s DeviceState) String() string {
	return fmt.Sprintf("DeviceState{sn=%s settings=%d groups=%d schedulerEnabled=%t fetched=%s}",
		s.DeviceSN, len(s.Settings), len(s.Scheduler.Groups), s.Scheduler.Enabled,
		s.FetchedAt.Format(time.RFC3339))
}
