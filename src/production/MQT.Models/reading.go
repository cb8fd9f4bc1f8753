package mqtmodels

import "time"

// Reading is one immutable history record of an accepted sample
type Reading struct {
	ID             string       `bson:"_id" json:"id" db:"id"`
	DeviceID       string       `bson:"device_id" json:"device_id" db:"device_id"`
	Status         DeviceStatus `bson:"status" json:"status" db:"status"`
	BatteryVoltage int          `bson:"battery_voltage_mv" json:"battery_voltage_mv" db:"battery_voltage_mv"`
	BatteryPercent int          `bson:"battery_percent" json:"battery_percent" db:"battery_percent"`
	SignalStrength int          `bson:"signal_strength" json:"signal_strength" db:"signal_strength"`
	RSSI           int          `bson:"rssi" json:"rssi" db:"rssi"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at" db:"created_at"`
}
