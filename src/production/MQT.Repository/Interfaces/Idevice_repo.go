package interfaces

import (
	"context"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type DeviceRepository interface {
	// Read devices
	GetDeviceByIdentifier(ctx context.Context, identifier string) (*mqtmodels.Device, error)
	ListStaleDevices(ctx context.Context, cutoff time.Time) ([]mqtmodels.Device, error)

	// UpdateDeviceState writes the reconciled fields if device.Version still
	// matches the stored row and returns the new version. A mismatch yields
	// ErrVersionConflict.
	UpdateDeviceState(ctx context.Context, device mqtmodels.Device) (int64, error)

	// ClaimAlert sets the last alert timestamp for kind to now, but only if the
	// previous one is unset or at least window old. false means another
	// dispatcher already claimed the window.
	ClaimAlert(ctx context.Context, deviceID string, kind mqtmodels.AlertKind, now time.Time, window time.Duration) (bool, error)
}
