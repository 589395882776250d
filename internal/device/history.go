package device

import (
	"cmp"
	"slices"
)

// SortHistory orders devices by timestamp, newest first, in place.
// Devices with identical timestamps keep their relative order.
func SortHistory(devices []Device) {
	slices.SortStableFunc(devices, func(a, b Device) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
}
