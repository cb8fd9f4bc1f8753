package mqtmodels

import "time"

// Share grants a non-owner viewer access to a device
type Share struct {
	DeviceID   string    `json:"device_id" db:"device_id"`
	ViewerID   string    `json:"viewer_id" db:"viewer_id"`
	Permission string    `json:"permission" db:"permission"` // view or manage
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
