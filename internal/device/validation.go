package device

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength   = 100
	maxFieldLength  = 100
	maxReasonLength = 500
)

// ValidateCreateInput checks creation input and returns the normalised device
// fields. The returned Device has no ID, status or timestamp; the Registry
// assigns those.
//
// Every error wraps ErrInvalidDevice.
func ValidateCreateInput(in CreateInput) (*Device, error) {
	name, err := ResolveName(in.DeviceType, in.Name)
	if err != nil {
		return nil, err
	}

	d := &Device{
		Name:         name,
		Brand:        strings.TrimSpace(in.Brand),
		SerialNumber: strings.TrimSpace(in.SerialNumber),
		Responsible:  strings.TrimSpace(in.Responsible),
		Reason:       strings.TrimSpace(in.Reason),
	}

	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"brand", d.Brand, maxFieldLength},
		{"serialNumber", d.SerialNumber, maxFieldLength},
		{"responsible", d.Responsible, maxFieldLength},
		{"reason", d.Reason, maxReasonLength},
	}
	for _, f := range fields {
		if err := validateRequired(f.name, f.value, f.max); err != nil {
			return nil, err
		}
	}

	if in.MovementType == "" {
		return nil, fmt.Errorf("%w: %w: movementType", ErrInvalidDevice, ErrMissingField)
	}
	mt, err := ParseMovementType(string(in.MovementType))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	d.MovementType = mt

	return d, nil
}

// ResolveName derives the stored device name.
//
// An "Otros" device type requires a free-text name. Any other non-empty type
// is itself the name. With no type at all the supplied name is used as-is.
func ResolveName(deviceType, name string) (string, error) {
	deviceType = strings.TrimSpace(deviceType)
	name = strings.TrimSpace(name)

	var resolved string
	switch {
	case deviceType == "":
		resolved = name
	case IsOtherDeviceType(deviceType):
		if name == "" {
			return "", fmt.Errorf("%w: %w: name is required when device type is %q", ErrInvalidDevice, ErrMissingField, deviceType)
		}
		resolved = name
	default:
		resolved = deviceType
	}

	if err := validateRequired("name", resolved, maxNameLength); err != nil {
		return "", err
	}
	return resolved, nil
}

// validateRequired checks a trimmed required field against its length limit.
func validateRequired(field, value string, maxLen int) error {
	if value == "" {
		return fmt.Errorf("%w: %w: %s", ErrInvalidDevice, ErrMissingField, field)
	}
	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%w: %w: %s exceeds %d characters", ErrInvalidDevice, ErrFieldTooLong, field, maxLen)
	}
	return nil
}

// ValidateDevice checks a fully formed device, as read back from storage or
// before persisting. It enforces the record invariants: all required fields
// present and known enumeration values.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}
	if d.ID == "" {
		return fmt.Errorf("%w: %w: id", ErrInvalidDevice, ErrMissingField)
	}
	for _, f := range []struct{ name, value string }{
		{"name", d.Name},
		{"brand", d.Brand},
		{"serialNumber", d.SerialNumber},
		{"responsible", d.Responsible},
		{"reason", d.Reason},
	} {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %w: %s", ErrInvalidDevice, ErrMissingField, f.name)
		}
	}
	if _, err := ParseMovementType(string(d.MovementType)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	if _, err := ParseStatus(string(d.Status)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDevice, err)
	}
	if d.Timestamp.IsZero() {
		return fmt.Errorf("%w: %w: timestamp", ErrInvalidDevice, ErrMissingField)
	}
	return nil
}

// GenerateID creates a new unique device ID.
func GenerateID() string {
	return uuid.NewString()
}
