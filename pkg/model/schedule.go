package model

import (
	"errors"
	"fmt"
)

// Schedule field errors.
var (
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrSocOutOfRange   = errors.New("SoC value out of range")
	ErrPowerOutOfRange = errors.New("power value out of range")
)

// Ranges holds device-specific bounds for the numeric schedule fields.
// A series profile supplies the concrete values; DefaultRanges covers
// devices without a known profile.
type Ranges struct {
	// MinSoc and MaxSoc bound every SoC percentage field.
	MinSoc int
	MaxSoc int

	// MaxFdPwr is the maximum force charge/discharge power in watts.
	MaxFdPwr float64
}

// DefaultRanges are conservative bounds accepted by all known series.
func DefaultRanges() Ranges {
	return Ranges{MinSoc: 10, MaxSoc: 100, MaxFdPwr: 12000}
}

// TimeOfDay is an hour/minute pair within a 24h day.
type TimeOfDay struct {
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`
}

// Validate checks the hour and minute bounds.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, t.Hour, t.Minute)
	}
	return nil
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ScheduleGroup is one scheduler time segment. Slots are independent
// and may overlap; the device imposes no ordering between them, so
// neither does this type. Only field-level ranges are validated.
type ScheduleGroup struct {
	// Enable is 1 when the slot is active, 0 otherwise (wire convention).
	Enable int `json:"enable"`

	// Start and End delimit the slot within the day.
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`

	// WorkMode applies while the slot is active.
	WorkMode WorkMode `json:"workMode"`

	// MinSocOnGrid is the minimum SoC while on grid, percent.
	MinSocOnGrid int `json:"minSocOnGrid"`

	// FdSoc is the force charge/discharge SoC target, percent.
	FdSoc int `json:"fdSoc"`

	// FdPwr is the force charge/discharge power, watts.
	FdPwr float64 `json:"fdPwr"`

	// MaxSoc is the maximum SoC, percent.
	MaxSoc int `json:"maxSoc"`
}

// DefaultGroup returns the neutral slot used when no remote data exists.
func DefaultGroup() ScheduleGroup {
	return ScheduleGroup{
		Enable:       0,
		WorkMode:     WorkModeSelfUse,
		MinSocOnGrid: 20,
		FdSoc:        20,
		FdPwr:        10000,
		MaxSoc:       100,
	}
}

// Validate checks field-level ranges against the given device bounds.
func (g ScheduleGroup) Validate(r Ranges) error {
	if g.Enable != 0 && g.Enable != 1 {
		return fmt.Errorf("enable must be 0 or 1, got %d", g.Enable)
	}
	if err := g.Start.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := g.End.Validate(); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if !g.WorkMode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownWorkMode, g.WorkMode)
	}
	for _, soc := range []struct {
		name  string
		value int
	}{
		{"minSocOnGrid", g.MinSocOnGrid},
		{"fdSoc", g.FdSoc},
		{"maxSoc", g.MaxSoc},
	} {
		if soc.value < r.MinSoc || soc.value > r.MaxSoc {
			return fmt.Errorf("%w: %s=%d (allowed %d-%d)",
				ErrSocOutOfRange, soc.name, soc.value, r.MinSoc, r.MaxSoc)
		}
	}
	if g.FdPwr < 0 || g.FdPwr > r.MaxFdPwr {
		return fmt.Errorf("%w: fdPwr=%g (allowed 0-%g)", ErrPowerOutOfRange, g.FdPwr, r.MaxFdPwr)
	}
	return nil
}

// Equal reports value equality of two groups.
func (g ScheduleGroup) Equal(o ScheduleGroup) bool {
	return g == o
}

// ScheduleSet is the full ordered list of scheduler slots. The set is
// always written to the device as a whole; an empty set is a valid
// value meaning "clear all schedules".
type ScheduleSet []ScheduleGroup

// Validate checks every group in the set.
func (s ScheduleSet) Validate(r Ranges) error {
	for i, g := range s {
		if err := g.Validate(r); err != nil {
			return fmt.Errorf("group %d: %w", i, err)
		}
	}
	return nil
}

// Equal reports positional value equality of two sets. A nil set and
// an empty set compare equal: both mean "no slots".
func (s ScheduleSet) Equal(o ScheduleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s ScheduleSet) Clone() ScheduleSet {
	if s == nil {
		return nil
	}
	out := make(ScheduleSet, len(s))
	copy(out, s)
	return out
}

// SchedulerState is the scheduler portion of the remote device state.
type SchedulerState struct {
	// Enabled is true when the device scheduler is active. While
	// active, the device rejects direct WorkMode setting writes.
	Enabled bool

	// Groups is the last known slot list.
	Groups ScheduleSet
}

// Clone returns an independent copy.
func (s SchedulerState) Clone() SchedulerState {
	return SchedulerState{Enabled: s.Enabled, Groups: s.Groups.Clone()}
}
