package mqtmodels

// ViewerPreferences holds a viewer's optional throttle window overrides in hours
type ViewerPreferences struct {
	ViewerID                    string `json:"viewer_id" db:"viewer_id"`
	AlarmIntervalHours          *int   `json:"alarm_interval_hours,omitempty" db:"alarm_interval_hours"`
	LowBatteryIntervalHours     *int   `json:"low_battery_interval_hours,omitempty" db:"low_battery_interval_hours"`
	ConnectionLostIntervalHours *int   `json:"connection_lost_interval_hours,omitempty" db:"connection_lost_interval_hours"`
}
