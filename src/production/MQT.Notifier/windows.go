package notifier

import (
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// Windows are the per-kind throttle intervals
type Windows struct {
	Alarm          time.Duration
	LowBattery     time.Duration
	ConnectionLost time.Duration
}

func DefaultWindows() Windows {
	return Windows{
		Alarm:          time.Hour,
		LowBattery:     24 * time.Hour,
		ConnectionLost: 24 * time.Hour,
	}
}

func (w Windows) For(kind mqtmodels.AlertKind) time.Duration {
	switch kind {
	case mqtmodels.AlertAlarm:
		return w.Alarm
	case mqtmodels.AlertLowBattery:
		return w.LowBattery
	case mqtmodels.AlertConnectionLost:
		return w.ConnectionLost
	}
	return 0
}

// WithPreferences overlays a viewer's hour overrides. Non-positive overrides are ignored.
func (w Windows) WithPreferences(prefs *mqtmodels.ViewerPreferences) Windows {
	if prefs == nil {
		return w
	}
	pick := func(hours *int, fallback time.Duration) time.Duration {
		if hours == nil || *hours <= 0 {
			return fallback
		}
		return time.Duration(*hours) * time.Hour
	}
	return Windows{
		Alarm:          pick(prefs.AlarmIntervalHours, w.Alarm),
		LowBattery:     pick(prefs.LowBatteryIntervalHours, w.LowBattery),
		ConnectionLost: pick(prefs.ConnectionLostIntervalHours, w.ConnectionLost),
	}
}
