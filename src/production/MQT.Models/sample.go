package mqtmodels

// StatusCodeTriggered is the wire status flag for a triggered sensor
const StatusCodeTriggered byte = 0x00

// Sample is a decoded 4-byte telemetry payload
type Sample struct {
	StatusCode        byte `json:"status_code"`
	VoltageMillivolts int  `json:"voltage_mv"`
	RSSIMagnitude     int  `json:"rssi_magnitude"`
}

// Triggered reports whether the sensor flagged a trigger
func (s Sample) Triggered() bool {
	return s.StatusCode == StatusCodeTriggered
}

// RSSI returns the signed signal strength in dBm
func (s Sample) RSSI() int {
	return -s.RSSIMagnitude
}
