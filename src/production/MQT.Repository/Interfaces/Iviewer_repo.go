package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type ViewerRepository interface {
	// GetPreferences returns nil, nil when the viewer never stored overrides
	GetPreferences(ctx context.Context, viewerID string) (*mqtmodels.ViewerPreferences, error)
}
