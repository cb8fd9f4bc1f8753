package mqtmodels

import "time"

// DeviceStatus is the reconciled state of a sensor
type DeviceStatus string

const (
	StatusActive    DeviceStatus = "active"
	StatusInactive  DeviceStatus = "inactive"
	StatusTriggered DeviceStatus = "triggered"
)

// Device represents a battery powered sensor identified by its IMEI-class identifier
type Device struct {
	ID                  string       `json:"id" db:"id"`
	Identifier          string       `json:"identifier" db:"identifier"`
	Name                string       `json:"name" db:"name"`
	Status              DeviceStatus `json:"status" db:"status"`
	BatteryVoltage      *int         `json:"battery_voltage_mv,omitempty" db:"battery_voltage_mv"`
	BatteryPercent      int          `json:"battery_percent" db:"battery_percent"`
	SignalStrength      int          `json:"signal_strength" db:"signal_strength"`
	RSSI                int          `json:"rssi" db:"rssi"`
	LastSeenAt          *time.Time   `json:"last_seen_at,omitempty" db:"last_seen_at"`
	LastBatteryAlertAt  *time.Time   `json:"last_battery_alert_at,omitempty" db:"last_battery_alert_at"`
	LastOfflineAlertAt  *time.Time   `json:"last_offline_alert_at,omitempty" db:"last_offline_alert_at"`
	LastCatchAlertAt    *time.Time   `json:"last_catch_alert_at,omitempty" db:"last_catch_alert_at"`
	OwnerID             *string      `json:"owner_id,omitempty" db:"owner_id"`
	LowBatteryThreshold *int         `json:"low_battery_threshold,omitempty" db:"low_battery_threshold"`
	Version             int64        `json:"version" db:"version"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
}

// Clone returns a copy that shares no pointers with d
func (d Device) Clone() Device {
	c := d
	c.BatteryVoltage = cloneInt(d.BatteryVoltage)
	c.LastSeenAt = cloneTime(d.LastSeenAt)
	c.LastBatteryAlertAt = cloneTime(d.LastBatteryAlertAt)
	c.LastOfflineAlertAt = cloneTime(d.LastOfflineAlertAt)
	c.LastCatchAlertAt = cloneTime(d.LastCatchAlertAt)
	c.OwnerID = cloneString(d.OwnerID)
	c.LowBatteryThreshold = cloneInt(d.LowBatteryThreshold)
	return c
}

// LastAlertAt returns the stored timestamp for the given alert kind
func (d *Device) LastAlertAt(kind AlertKind) *time.Time {
	switch kind {
	case AlertAlarm:
		return d.LastCatchAlertAt
	case AlertLowBattery:
		return d.LastBatteryAlertAt
	case AlertConnectionLost:
		return d.LastOfflineAlertAt
	}
	return nil
}

// SetLastAlertAt records t for the given alert kind
func (d *Device) SetLastAlertAt(kind AlertKind, t time.Time) {
	switch kind {
	case AlertAlarm:
		d.LastCatchAlertAt = &t
	case AlertLowBattery:
		d.LastBatteryAlertAt = &t
	case AlertConnectionLost:
		d.LastOfflineAlertAt = &t
	}
}

// DisplayName falls back to the identifier for unnamed devices
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Identifier
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
