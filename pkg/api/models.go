package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// envelope is the common response wrapper.
type envelope struct {
	Errno   *int            `json:"errno"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (e envelope) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

type deviceWire struct {
	DeviceSN    string `json:"deviceSN"`
	ModuleSN    string `json:"moduleSN"`
	StationID   string `json:"stationID"`
	StationName string `json:"stationName"`
	Status      int    `json:"status"`
	HasBattery  bool   `json:"hasBattery"`
	DeviceType  string `json:"deviceType"`
	ProductType string `json:"productType"`
}

func (w deviceWire) toModel() model.Inverter {
	return model.Inverter{
		DeviceSN:    w.DeviceSN,
		ModuleSN:    w.ModuleSN,
		StationID:   w.StationID,
		StationName: w.StationName,
		Status:      w.Status,
		HasBattery:  w.HasBattery,
		DeviceType:  w.DeviceType,
		ProductType: w.ProductType,
	}
}

type deviceListResult struct {
	Data []deviceWire `json:"data"`
}

type deviceDetailWire struct {
	deviceWire

	ManagerVersion  string         `json:"managerVersion"`
	MasterVersion   string         `json:"masterVersion"`
	SlaveVersion    string         `json:"slaveVersion"`
	HardwareVersion string         `json:"hardwareVersion"`
	Capacity        float64        `json:"capacity"`
	Function        map[string]any `json:"function"`
}

func (w deviceDetailWire) toModel() model.InverterDetail {
	detail := model.InverterDetail{
		Inverter:        w.deviceWire.toModel(),
		ManagerVersion:  w.ManagerVersion,
		MasterVersion:   w.MasterVersion,
		SlaveVersion:    w.SlaveVersion,
		HardwareVersion: w.HardwareVersion,
		Capacity:        w.Capacity,
	}
	if w.Function != nil {
		detail.Function = make(map[string]bool, len(w.Function))
		for name, v := range w.Function {
			enabled, _ := v.(bool)
			detail.Function[name] = enabled
		}
	}
	return detail
}

type settingItemWire struct {
	EnumList  []string `json:"enumList"`
	Unit      string   `json:"unit"`
	Precision float64  `json:"precision"`
	Value     any      `json:"value"`
}

func (w settingItemWire) toModel(key model.SettingKey) model.Setting {
	return model.Setting{
		Key:        key,
		Value:      anyToSettingValue(w.Value),
		Unit:       w.Unit,
		Precision:  w.Precision,
		EnumValues: w.EnumList,
	}
}

type batterySocWire struct {
	MinSoc       int `json:"minSoc"`
	MinSocOnGrid int `json:"minSocOnGrid"`
}

// Generation holds today/month/cumulative production in kWh.
type Generation struct {
	Today      float64 `json:"today"`
	Month      float64 `json:"month"`
	Cumulative float64 `json:"cumulative"`
}

// ProductionPoint is one series from the production report endpoint.
type ProductionPoint struct {
	Variable string    `json:"variable"`
	Unit     string    `json:"unit"`
	Values   []float64 `json:"values"`
}

type realtimeVarWire struct {
	Variable string `json:"variable"`
	Unit     string `json:"unit"`
	Value    any    `json:"value"`
}

type realtimeWire struct {
	DeviceSN string            `json:"deviceSN"`
	Datas    []realtimeVarWire `json:"datas"`
	Time     string            `json:"time"`
}

type schedulerGroupWire struct {
	Enable       int     `json:"enable"`
	StartHour    int     `json:"startHour"`
	StartMinute  int     `json:"startMinute"`
	EndHour      int     `json:"endHour"`
	EndMinute    int     `json:"endMinute"`
	WorkMode     string  `json:"workMode"`
	MinSocOnGrid int     `json:"minSocOnGrid"`
	FdSoc        int     `json:"fdSoc"`
	FdPwr        float64 `json:"fdPwr"`
	MaxSoc       int     `json:"maxSoc"`
}

func groupToWire(g model.ScheduleGroup) schedulerGroupWire {
	return schedulerGroupWire{
		Enable:       g.Enable,
		StartHour:    g.Start.Hour,
		StartMinute:  g.Start.Minute,
		EndHour:      g.End.Hour,
		EndMinute:    g.End.Minute,
		WorkMode:     g.WorkMode.String(),
		MinSocOnGrid: g.MinSocOnGrid,
		FdSoc:        g.FdSoc,
		FdPwr:        g.FdPwr,
		MaxSoc:       g.MaxSoc,
	}
}

func groupFromWire(w schedulerGroupWire) model.ScheduleGroup {
	return model.ScheduleGroup{
		Enable:       w.Enable,
		Start:        model.TimeOfDay{Hour: w.StartHour, Minute: w.StartMinute},
		End:          model.TimeOfDay{Hour: w.EndHour, Minute: w.EndMinute},
		WorkMode:     model.WorkMode(w.WorkMode),
		MinSocOnGrid: w.MinSocOnGrid,
		FdSoc:        w.FdSoc,
		FdPwr:        w.FdPwr,
		MaxSoc:       w.MaxSoc,
	}
}

type schedulerInfoWire struct {
	Enable int                  `json:"enable"`
	Groups []schedulerGroupWire `json:"groups"`
}

type schedulerSetWire struct {
	DeviceSN string               `json:"deviceSN"`
	Groups   []schedulerGroupWire `json:"groups"`
}

// anyToSettingValue normalizes the untyped JSON value the cloud
// returns (string or number, depending on the key).
func anyToSettingValue(v any) model.SettingValue {
	switch n := v.(type) {
	case nil:
		return model.SettingValue{}
	case string:
		return model.StringValue(n)
	case float64:
		return model.NumberValue(n)
	case json.Number:
		return model.StringValue(n.String())
	case bool:
		return model.StringValue(strconv.FormatBool(n))
	default:
		return model.StringValue(fmt.Sprintf("%v", n))
	}
}

// settingValueToWire picks the wire representation: numbers go out as
// numbers, everything else as strings.
func settingValueToWire(v model.SettingValue) any {
	if n, ok := v.Number(); ok {
		return n
	}
	return v.Raw
}
