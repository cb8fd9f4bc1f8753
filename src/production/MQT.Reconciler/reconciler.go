// Package reconciler holds the pure device state machine. Nothing in here
// touches the store; the engine persists the returned Outcome.
package reconciler

import (
	"time"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	telemetry "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Telemetry"
)

// DefaultLowBatteryThreshold is the battery percentage below which LOW_BATTERY fires
const DefaultLowBatteryThreshold = 20

// Outcome is everything a single accepted sample produces
type Outcome struct {
	Device  mqtmodels.Device
	Intents []mqtmodels.Intent
	Reading mqtmodels.Reading // ID is assigned when persisted
}

// Next computes the new status and the alert intents for a sample.
// ALARM is edge triggered on entering the triggered state. LOW_BATTERY is
// level triggered and left to the dispatcher's throttle window.
func Next(previous mqtmodels.DeviceStatus, sample mqtmodels.Sample, threshold int) (mqtmodels.DeviceStatus, []mqtmodels.Intent) {
	var intents []mqtmodels.Intent

	status := mqtmodels.StatusActive
	if sample.Triggered() {
		status = mqtmodels.StatusTriggered
		if previous != mqtmodels.StatusTriggered {
			intents = append(intents, mqtmodels.Intent{Kind: mqtmodels.AlertAlarm})
		}
	}

	if telemetry.BatteryPercent(sample.VoltageMillivolts) < threshold {
		intents = append(intents, mqtmodels.Intent{Kind: mqtmodels.AlertLowBattery})
	}

	return status, intents
}

// ThresholdFor returns the device override when set, else the default
func ThresholdFor(device mqtmodels.Device, defaultThreshold int) int {
	if device.LowBatteryThreshold != nil {
		return *device.LowBatteryThreshold
	}
	return defaultThreshold
}

// Apply folds a sample into a copy of device. The input is not modified.
func Apply(device mqtmodels.Device, sample mqtmodels.Sample, now time.Time, defaultThreshold int) Outcome {
	status, intents := Next(device.Status, sample, ThresholdFor(device, defaultThreshold))

	next := device.Clone()
	voltage := sample.VoltageMillivolts
	seen := now
	next.Status = status
	next.BatteryVoltage = &voltage
	next.BatteryPercent = telemetry.BatteryPercent(voltage)
	next.SignalStrength = telemetry.SignalBars(sample.RSSIMagnitude)
	next.RSSI = sample.RSSI()
	next.LastSeenAt = &seen

	return Outcome{
		Device:  next,
		Intents: intents,
		Reading: mqtmodels.Reading{
			DeviceID:       next.ID,
			Status:         next.Status,
			BatteryVoltage: voltage,
			BatteryPercent: next.BatteryPercent,
			SignalStrength: next.SignalStrength,
			RSSI:           next.RSSI,
			CreatedAt:      now,
		},
	}
}

// Demote marks a silent device inactive. It reports false when there is
// nothing to change. lastSeenAt is kept so the silence stays measurable.
func Demote(device mqtmodels.Device) (mqtmodels.Device, bool) {
	if device.Status == mqtmodels.StatusInactive {
		return device, false
	}
	next := device.Clone()
	next.Status = mqtmodels.StatusInactive
	return next, true
}
