package device

import "fmt"

// transitionKey identifies a row of the transition table.
type transitionKey struct {
	from     Status
	movement MovementType
}

// transitions is the complete table of legal status changes.
// Anything not listed here is illegal, including same-state requests,
// any change out of entregado, and any change back to pendiente.
var transitions = map[transitionKey]Status{
	{from: StatusPending, movement: MovementIncoming}:   StatusValidated,
	{from: StatusPending, movement: MovementOutgoing}:   StatusValidated,
	{from: StatusValidated, movement: MovementOutgoing}: StatusDelivered,
}

// NextStatus returns the single legal next status for a device in the given
// status and movement, and false when the device has no further transition.
func NextStatus(from Status, movement MovementType) (Status, bool) {
	next, ok := transitions[transitionKey{from: from, movement: movement}]
	return next, ok
}

// CanTransition reports whether moving from one status to another is legal
// for the given movement type.
func CanTransition(from, to Status, movement MovementType) bool {
	next, ok := NextStatus(from, movement)
	return ok && next == to
}

// AllowedTransitions returns the statuses the device may move to next.
// User interfaces use this to decide which actions to offer.
// The result is empty for terminal devices.
func AllowedTransitions(d *Device) []Status {
	if d == nil {
		return nil
	}
	if next, ok := NextStatus(d.Status, d.MovementType); ok {
		return []Status{next}
	}
	return []Status{}
}

// checkTransition returns ErrIllegalTransition (wrapped with context) when the
// requested change is not in the table.
func checkTransition(d *Device, to Status) error {
	if CanTransition(d.Status, to, d.MovementType) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s for %s movement", ErrIllegalTransition, d.Status, to, d.MovementType)
}
