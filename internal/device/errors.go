package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrIllegalTransition) {
//	    // the requested status change is not in the transition table
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when storing a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when creation input fails validation.
	// Every validation failure wraps it.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrMissingField is returned when a required field is empty.
	ErrMissingField = errors.New("device: missing required field")

	// ErrFieldTooLong is returned when a field exceeds its length limit.
	ErrFieldTooLong = errors.New("device: field too long")

	// ErrInvalidMovementType is returned when a movement type is not recognised.
	ErrInvalidMovementType = errors.New("device: invalid movement type")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrIllegalTransition is returned when a status change is not in the transition table.
	ErrIllegalTransition = errors.New("device: illegal status transition")
)
