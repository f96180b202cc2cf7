package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxsync/foxsync-go/pkg/model"
	"github.com/foxsync/foxsync-go/pkg/profiles"
)

// Sentinel errors.
var (
	// ErrDeviceNotFound means the serial is not on the account.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAmbiguousDevice means no serial was given and the account
	// has more than one device.
	ErrAmbiguousDevice = errors.New("multiple devices on account, serial required")

	// ErrNoDevices means the account has no devices at all.
	ErrNoDevices = errors.New("no devices on account")
)

// Client is the slice of the cloud API discovery needs. *api.Client
// satisfies it.
type Client interface {
	ListInverters(ctx context.Context, page, pageSize int) ([]model.Inverter, error)
	DeviceDetail(ctx context.Context, sn string) (model.InverterDetail, error)
}

const pageSize = 100

// Devices returns every inverter on the account, walking all pages.
func Devices(ctx context.Context, c Client) ([]model.Inverter, error) {
	var all []model.Inverter
	for page := 1; ; page++ {
		batch, err := c.ListInverters(ctx, page, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list devices page %d: %w", page, err)
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

// Resolve picks the inverter with the given serial. An empty serial
// resolves to the account's only device, and is an error when the
// account has none or several.
func Resolve(ctx context.Context, c Client, sn string) (model.Inverter, error) {
	devices, err := Devices(ctx, c)
	if err != nil {
		return model.Inverter{}, err
	}
	if sn == "" {
		switch len(devices) {
		case 0:
			return model.Inverter{}, ErrNoDevices
		case 1:
			return devices[0], nil
		default:
			return model.Inverter{}, ErrAmbiguousDevice
		}
	}
	for _, d := range devices {
		if d.DeviceSN == sn {
			return d, nil
		}
	}
	return model.Inverter{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, sn)
}

// Capabilities describes what a probed device supports.
type Capabilities struct {
	Detail model.InverterDetail

	// Profile is the series profile selected from the product type.
	Profile profiles.Profile

	// SchedulerSupported mirrors the detail's function flags. When
	// false the scheduler unit does not exist for this device.
	SchedulerSupported bool
}

// Probe fetches the detail document for sn and derives the series
// profile and capability flags.
func Probe(ctx context.Context, c Client, sn string) (Capabilities, error) {
	detail, err := c.DeviceDetail(ctx, sn)
	if err != nil {
		return Capabilities{}, fmt.Errorf("probe %s: %w", sn, err)
	}
	return Capabilities{
		Detail:             detail,
		Profile:            profiles.Select(&detail),
		SchedulerSupported: detail.SupportsScheduler(),
	}, nil
}
