package mqtmodels

// AlertKind identifies an independently throttled notification type
type AlertKind string

const (
	AlertAlarm          AlertKind = "ALARM"
	AlertLowBattery     AlertKind = "LOW_BATTERY"
	AlertConnectionLost AlertKind = "CONNECTION_LOST"
)

// Intent is a request from the reconciler or watchdog to notify viewers
type Intent struct {
	Kind AlertKind `json:"kind"`
}
