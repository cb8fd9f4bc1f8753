package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
)

// PayloadSize is the exact length of a sensor status frame
const PayloadSize = 4

const (
	emptyMillivolts = 3200
	fullMillivolts  = 4200
)

// ErrInvalidPayloadLength is returned for frames that are not exactly PayloadSize bytes
var ErrInvalidPayloadLength = errors.New("invalid payload length")

// Decode parses a status frame:
//
//	byte 0    status flag, 0x00 = triggered, anything else = active
//	byte 1-2  battery voltage in millivolts, big-endian
//	byte 3    RSSI magnitude, RSSI = -magnitude dBm
func Decode(payload []byte) (mqtmodels.Sample, error) {
	if len(payload) != PayloadSize {
		return mqtmodels.Sample{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPayloadLength, len(payload), PayloadSize)
	}
	return mqtmodels.Sample{
		StatusCode:        payload[0],
		VoltageMillivolts: int(binary.BigEndian.Uint16(payload[1:3])),
		RSSIMagnitude:     int(payload[3]),
	}, nil
}

// Encode is the inverse of Decode. Out of range values are clamped to the
// field width.
func Encode(s mqtmodels.Sample) []byte {
	buf := make([]byte, PayloadSize)
	buf[0] = s.StatusCode
	binary.BigEndian.PutUint16(buf[1:3], uint16(clamp(s.VoltageMillivolts, 0, math.MaxUint16)))
	buf[3] = byte(clamp(s.RSSIMagnitude, 0, math.MaxUint8))
	return buf
}

// BatteryPercent maps the 3.2V-4.2V cell range linearly onto 0-100
func BatteryPercent(millivolts int) int {
	pct := math.Round(float64(millivolts-emptyMillivolts) / float64(fullMillivolts-emptyMillivolts) * 100)
	return clamp(int(pct), 0, 100)
}

// SignalBars normalizes an RSSI magnitude to 0-4 bars
func SignalBars(magnitude int) int {
	switch {
	case magnitude <= 75:
		return 4
	case magnitude <= 90:
		return 3
	case magnitude <= 100:
		return 2
	case magnitude <= 110:
		return 1
	default:
		return 0
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
