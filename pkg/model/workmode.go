package model

import (
	"errors"
	"fmt"
)

// ErrUnknownWorkMode is returned when parsing an unrecognized work mode.
var ErrUnknownWorkMode = errors.New("unknown work mode")

// WorkMode is an inverter operating mode. The string values are the
// exact tokens the cloud API expects on the wire.
type WorkMode string

const (
	// WorkModeSelfUse prioritizes local consumption of PV output.
	WorkModeSelfUse WorkMode = "SelfUse"

	// WorkModeFeedin prioritizes grid export.
	WorkModeFeedin WorkMode = "Feedin"

	// WorkModeBackup keeps the battery reserved for outages.
	WorkModeBackup WorkMode = "Backup"

	// WorkModePeakShaving discharges to cap grid import peaks.
	WorkModePeakShaving WorkMode = "PeakShaving"

	// WorkModeForceCharge force-charges the battery (scheduler slots only).
	WorkModeForceCharge WorkMode = "ForceCharge"

	// WorkModeForceDischarge force-discharges the battery (scheduler slots only).
	WorkModeForceDischarge WorkMode = "ForceDischarge"
)

// WorkModes lists all known work modes in display order.
func WorkModes() []WorkMode {
	return []WorkMode{
		WorkModeSelfUse,
		WorkModeFeedin,
		WorkModeBackup,
		WorkModePeakShaving,
		WorkModeForceCharge,
		WorkModeForceDischarge,
	}
}

// ParseWorkMode validates a wire token and returns the matching WorkMode.
func ParseWorkMode(s string) (WorkMode, error) {
	for _, m := range WorkModes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWorkMode, s)
}

// Valid returns true if the mode is one of the known work modes.
func (m WorkMode) Valid() bool {
	_, err := ParseWorkMode(string(m))
	return err == nil
}

// String returns the wire token.
func (m WorkMode) String() string { return string(m) }
