package interfaces

import "errors"

var (
	// ErrDeviceNotFound is returned when no device matches the identifier or id
	ErrDeviceNotFound = errors.New("device not found")

	// ErrVersionConflict is returned when a device was modified since it was read
	ErrVersionConflict = errors.New("device version conflict")
)
