package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownSettingKey is returned for keys the cloud API does not expose.
var ErrUnknownSettingKey = errors.New("unknown setting key")

// SettingKey is a canonical device setting identifier as expected by
// the cloud API (e.g. "WorkMode", "ExportLimit").
type SettingKey string

// Known setting keys.
const (
	SettingExportLimit      SettingKey = "ExportLimit"
	SettingMinSoc           SettingKey = "MinSoc"
	SettingMinSocOnGrid     SettingKey = "MinSocOnGrid"
	SettingMaxSoc           SettingKey = "MaxSoc"
	SettingGridCode         SettingKey = "GridCode"
	SettingWorkMode         SettingKey = "WorkMode"
	SettingActivePowerLimit SettingKey = "ActivePowerLimit"
	SettingExportLimitPower SettingKey = "ExportLimitPower"
	SettingEpsOutput        SettingKey = "EpsOutPut"
	SettingEcoMode          SettingKey = "ECOMode"
)

// settingKeys maps normalized spellings to canonical keys. The API is
// case-sensitive but users are not; "work_mode", "workmode" and
// "WorkMode" all resolve to the same key.
var settingKeys = map[string]SettingKey{
	"exportlimit":      SettingExportLimit,
	"minsoc":           SettingMinSoc,
	"minsocongrid":     SettingMinSocOnGrid,
	"maxsoc":           SettingMaxSoc,
	"gridcode":         SettingGridCode,
	"workmode":         SettingWorkMode,
	"activepowerlimit": SettingActivePowerLimit,
	"exportlimitpower": SettingExportLimitPower,
	"epsoutput":        SettingEpsOutput,
	"ecomode":          SettingEcoMode,
}

// CanonicalSettingKey resolves a user-supplied key spelling to the
// canonical form, or ErrUnknownSettingKey.
func CanonicalSettingKey(key string) (SettingKey, error) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key))
	if canonical, ok := settingKeys[normalized]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSettingKey, key)
}

// SettingKeys lists all canonical keys.
func SettingKeys() []SettingKey {
	return []SettingKey{
		SettingExportLimit,
		SettingMinSoc,
		SettingMinSocOnGrid,
		SettingMaxSoc,
		SettingGridCode,
		SettingWorkMode,
		SettingActivePowerLimit,
		SettingExportLimitPower,
		SettingEpsOutput,
		SettingEcoMode,
	}
}

// SettingValue is a single setting value. The cloud returns either a
// string or a number depending on the key; both forms are kept and
// compared numerically when possible so "80" and 80 stage clean
// against each other.
type SettingValue struct {
	// Raw is the string form as sent to or received from the cloud.
	Raw string
}

// StringValue builds a setting value from a string.
func StringValue(s string) SettingValue { return SettingValue{Raw: s} }

// NumberValue builds a setting value from a number.
func NumberValue(n float64) SettingValue {
	return SettingValue{Raw: strconv.FormatFloat(n, 'f', -1, 64)}
}

// Number returns the numeric interpretation, if any.
func (v SettingValue) Number() (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
	return n, err == nil
}

// IsZero reports whether the value is unset.
func (v SettingValue) IsZero() bool { return v.Raw == "" }

// Equal compares two values, numerically when both parse as numbers.
func (v SettingValue) Equal(o SettingValue) bool {
	if v.Raw == o.Raw {
		return true
	}
	a, aok := v.Number()
	b, bok := o.Number()
	return aok && bok && a == b
}

// String returns the raw form.
func (v SettingValue) String() string { return v.Raw }

// Setting pairs a key with its current remote value and the metadata
// the cloud reports for it.
type Setting struct {
	Key       SettingKey
	Value     SettingValue
	Unit      string
	Precision float64

	// EnumValues lists the allowed values for enumerated settings
	// (e.g. WorkMode); empty for numeric settings.
	EnumValues []string
}
