package interfaces

import (
	"context"
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

type SubscriptionRepository interface {
	// ListSubscriptionsByViewer returns the viewer's live subscriptions, gone ones excluded
	ListSubscriptionsByViewer(ctx context.Context, viewerID string) ([]mqtmodels.Subscription, error)
	MarkSubscriptionGone(ctx context.Context, subscriptionID string, at time.Time) error
}
