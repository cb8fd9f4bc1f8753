package mqtmodels

import "time"

// SubscriptionKeys are the web push encryption keys of a browser subscription
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a viewer's push delivery endpoint.
// Keys == nil means Endpoint is an opaque platform push token.
type Subscription struct {
	ID        string            `json:"id" db:"id"`
	ViewerID  string            `json:"viewer_id" db:"viewer_id"`
	Endpoint  string            `json:"endpoint" db:"endpoint"`
	Keys      *SubscriptionKeys `json:"keys" db:"-"`
	GoneAt    *time.Time        `json:"gone_at,omitempty" db:"gone_at"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// IsWebPush reports whether the subscription carries web push keys
func (s Subscription) IsWebPush() bool {
	return s.Keys != nil
}
