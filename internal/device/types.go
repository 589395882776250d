package device

import (
	"fmt"
	"strings"
	"time"
)

// Device is a physical item tracked as it moves in or out of the facility.
// This matches the devices table in migrations/20261018_120000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description
	Brand        string `json:"brand"`
	SerialNumber string `json:"serialNumber"`
	Responsible  string `json:"responsible"`
	Reason       string `json:"reason"`

	// Movement and approval
	MovementType MovementType `json:"movementType"`
	Status       Status       `json:"status"`

	// Timestamp is the registration time. It never changes after creation.
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns an independent copy of the device.
// Device has no reference fields, so a value copy is complete.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}

// IsOutside reports whether the device has confirmed departure from the facility.
func (d *Device) IsOutside() bool {
	return d.MovementType == MovementOutgoing && d.Status == StatusDelivered
}

// Status is the position of a device in the approval pipeline.
type Status string

// Approval statuses, in pipeline order.
const (
	StatusPending   Status = "pendiente"
	StatusValidated Status = "validado"
	StatusDelivered Status = "entregado"
)

// AllStatuses returns every status in pipeline order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusValidated, StatusDelivered}
}

// ParseStatus converts a string into a Status.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusValidated, StatusDelivered:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// UnmarshalText rejects unknown statuses at the decoding boundary.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Label returns the capitalised display form ("Pendiente").
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// MovementType records whether a device is entering or leaving the facility.
// It is fixed at creation.
type MovementType string

// Movement types.
const (
	MovementIncoming MovementType = "entrada"
	MovementOutgoing MovementType = "salida"
)

// AllMovementTypes returns every movement type.
func AllMovementTypes() []MovementType {
	return []MovementType{MovementIncoming, MovementOutgoing}
}

// ParseMovementType converts a string into a MovementType.
func ParseMovementType(s string) (MovementType, error) {
	mt := MovementType(strings.ToLower(strings.TrimSpace(s)))
	switch mt {
	case MovementIncoming, MovementOutgoing:
		return mt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMovementType, s)
}

// UnmarshalText rejects unknown movement types at the decoding boundary.
func (m *MovementType) UnmarshalText(text []byte) error {
	parsed, err := ParseMovementType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Label returns the display form ("Entrada", "Salida").
func (m MovementType) Label() string {
	switch m {
	case MovementIncoming:
		return "Entrada"
	case MovementOutgoing:
		return "Salida"
	}
	return string(m)
}

// StatusFilter selects devices by status in list views.
// FilterAll matches every device.
type StatusFilter string

// FilterAll is the filter value that disables status filtering.
const FilterAll StatusFilter = "todos"

// ParseStatusFilter converts a query value into a StatusFilter.
// An empty value means FilterAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" || v == string(FilterAll) {
		return FilterAll, nil
	}
	st, err := ParseStatus(v)
	if err != nil {
		return "", err
	}
	return StatusFilter(st), nil
}

// CreateInput carries the caller-supplied fields for registering a device.
// Status, ID and timestamp are never taken from the caller.
type CreateInput struct {
	// DeviceType is the catalogue type chosen by the operator ("Laptop", "Otros", ...).
	// When it is not DeviceTypeOther it becomes the device name.
	DeviceType   string       `json:"deviceType,omitempty"`
	Name         string       `json:"name"`
	Brand        string       `json:"brand"`
	SerialNumber string       `json:"serialNumber"`
	Responsible  string       `json:"responsible"`
	Reason       string       `json:"reason"`
	MovementType MovementType `json:"movementType"`
}

// Device types offered by the registration form.
// The set is open: any non-empty type is accepted.
const (
	DeviceTypeLaptop     = "Laptop"
	DeviceTypeDesktop    = "Computadora de escritorio"
	DeviceTypeMonitor    = "Monitor"
	DeviceTypeTablet     = "Tablet"
	DeviceTypePhone      = "Celular"
	DeviceTypePrinter    = "Impresora"
	DeviceTypeProjector  = "Proyector"
	DeviceTypeNetworking = "Equipo de red"
	DeviceTypeOther      = "Otros"
)

// KnownDeviceTypes returns the catalogue of device types offered to operators.
func KnownDeviceTypes() []string {
	return []string{
		DeviceTypeLaptop,
		DeviceTypeDesktop,
		DeviceTypeMonitor,
		DeviceTypeTablet,
		DeviceTypePhone,
		DeviceTypePrinter,
		DeviceTypeProjector,
		DeviceTypeNetworking,
		DeviceTypeOther,
	}
}

// IsOtherDeviceType reports whether the type requires a free-text name.
func IsOtherDeviceType(deviceType string) bool {
	t := strings.TrimSpace(deviceType)
	return strings.EqualFold(t, DeviceTypeOther) || strings.EqualFold(t, "Other")
}

// Patch is a partial update applied by a Repository.
// Nil fields are left untouched. Status is the only mutable field.
type Patch struct {
	Status *Status
}
