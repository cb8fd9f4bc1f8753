package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type ShareRepository interface {
	ListSharesByDevice(ctx context.Context, deviceID string) ([]mqtmodels.Share, error)
}
