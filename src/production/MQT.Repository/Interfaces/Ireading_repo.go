package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// ReadingRepository is the append-only telemetry history
type ReadingRepository interface {
	CreateReading(ctx context.Context, reading mqtmodels.Reading) error
	CreateReadings(ctx context.Context, readings []mqtmodels.Reading) error
}
