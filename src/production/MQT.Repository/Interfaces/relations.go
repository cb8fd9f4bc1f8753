package interfaces

import (
	"context"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// ViewersForDevice resolves the owner and every share grantee of device,
// owner first, without duplicates. Unowned devices still return grantees.
func ViewersForDevice(ctx context.Context, shares ShareRepository, device mqtmodels.Device) ([]string, error) {
	seen := make(map[string]struct{})
	var viewers []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		viewers = append(viewers, id)
	}

	if device.OwnerID != nil {
		add(*device.OwnerID)
	}

	grants, err := shares.ListSharesByDevice(ctx, device.ID)
	if err != nil {
		return viewers, err
	}
	for _, g := range grants {
		add(g.ViewerID)
	}

	return viewers, nil
}
