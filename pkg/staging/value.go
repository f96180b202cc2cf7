package staging

import (
	"fmt"

	"github.com/foxsync/foxsync-go/pkg/model"
)

type valueKind uint8

const (
	kindNone valueKind = iota
	kindSetting
	kindSchedule
)

// Value is a staged value: either a single setting value or a full
// schedule set. The zero Value stages nothing.
type Value struct {
	kind     valueKind
	setting  model.SettingValue
	schedule model.ScheduleSet
}

// ForSetting wraps a setting value.
func ForSetting(v model.SettingValue) Value {
	return Value{kind: kindSetting, setting: v}
}

// ForSchedule wraps a schedule set. An empty (or nil) set is a valid
// staged value meaning "clear all slots".
func ForSchedule(s model.ScheduleSet) Value {
	return Value{kind: kindSchedule, schedule: s.Clone()}
}

// Setting returns the staged setting value, if this is a setting unit.
func (v Value) Setting() (model.SettingValue, bool) {
	return v.setting, v.kind == kindSetting
}

// Schedule returns the staged schedule set, if this is the scheduler unit.
func (v Value) Schedule() (model.ScheduleSet, bool) {
	if v.kind != kindSchedule {
		return nil, false
	}
	return v.schedule.Clone(), true
}

// IsZero reports whether nothing is staged.
func (v Value) IsZero() bool { return v.kind == kindNone }

// Equal compares two staged values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindSetting:
		return v.setting.Equal(o.setting)
	case kindSchedule:
		return v.schedule.Equal(o.schedule)
	default:
		return true
	}
}

// String returns a short description for logs.
func (v Value) String() string {
	switch v.kind {
	case kindSetting:
		return fmt.Sprintf("setting(%s)", v.setting)
	case kindSchedule:
		return fmt.Sprintf("schedule(%d groups)", len(v.schedule))
	default:
		return "none"
	}
}
