package realtime

import (
	"context"
	"encoding/json"

	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

const EventSensorUpdate = "sensor_update"

// Event is the snapshot pushed to every interested viewer
type Event struct {
	Type   string           `json:"type"`
	Device mqtmodels.Device `json:"device"`
}

// Broadcaster sends a payload to a named realtime channel
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload []byte) error
}

// ChannelForViewer is the private channel a viewer's sessions listen on
func ChannelForViewer(viewerID string) string {
	return "private-viewer-" + viewerID
}

// Publisher fans device snapshots out to the owner and share grantees.
// Delivery is best-effort: failures are logged and never returned.
type Publisher struct {
	shares      interfaces.ShareRepository
	broadcaster Broadcaster
	logger      *logger.Logger
}

func NewPublisher(shares interfaces.ShareRepository, broadcaster Broadcaster, log *logger.Logger) *Publisher {
	return &Publisher{
		shares:      shares,
		broadcaster: broadcaster,
		logger:      log.WithComponent("realtime"),
	}
}

// Publish returns the viewers the event was sent to
func (p *Publisher) Publish(ctx context.Context, device mqtmodels.Device) []string {
	viewers, err := interfaces.ViewersForDevice(ctx, p.shares, device)
	if err != nil {
		p.logger.Logger.Error().Err(err).Str("identifier", device.Identifier).Msg("Failed to resolve share grantees")
	}
	if len(viewers) == 0 {
		return nil
	}

	payload, err := json.Marshal(Event{Type: EventSensorUpdate, Device: device})
	if err != nil {
		p.logger.Logger.Error().Err(err).Msg("Failed to marshal sensor update")
		return nil
	}

	var delivered []string
	for _, viewerID := range viewers {
		channel := ChannelForViewer(viewerID)
		if err := p.broadcaster.Broadcast(ctx, channel, payload); err != nil {
			p.logger.Logger.Warn().Err(err).Str("channel", channel).Msg("Failed to publish sensor update")
			continue
		}
		delivered = append(delivered, viewerID)
	}
	return delivered
}
