package notifier

import (
	"fmt"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// Message is the channel independent notification content
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// ComposeMessage builds the text shown for an alert of kind on device
func ComposeMessage(device mqtmodels.Device, kind mqtmodels.AlertKind) Message {
	name := device.DisplayName()

	var msg Message
	switch kind {
	case mqtmodels.AlertAlarm:
		msg.Title = "Sensor triggered"
		msg.Body = fmt.Sprintf("%s has been triggered.", name)
	case mqtmodels.AlertLowBattery:
		msg.Title = "Low battery"
		msg.Body = fmt.Sprintf("%s battery is at %d%%.", name, device.BatteryPercent)
	case mqtmodels.AlertConnectionLost:
		msg.Title = "Sensor offline"
		msg.Body = fmt.Sprintf("%s has stopped reporting.", name)
		if device.LastSeenAt != nil {
			msg.Body = fmt.Sprintf("%s has not reported since %s.", name, device.LastSeenAt.UTC().Format("2006-01-02 15:04 MST"))
		}
	default:
		msg.Title = string(kind)
		msg.Body = name
	}

	msg.Data = map[string]string{
		"kind":       string(kind),
		"deviceId":   device.ID,
		"identifier": device.Identifier,
	}
	return msg
}
