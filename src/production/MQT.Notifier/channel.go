package notifier

import (
	"context"
	"errors"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// ErrSubscriptionGone means the push service no longer accepts the endpoint
var ErrSubscriptionGone = errors.New("subscription gone")

// Channel delivers a message to one subscription
type Channel interface {
	Name() string
	Supports(sub mqtmodels.Subscription) bool
	Send(ctx context.Context, sub mqtmodels.Subscription, msg Message) error
}
