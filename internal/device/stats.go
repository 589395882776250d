package device

// Occupancy is the facility headcount derived from a device set.
// Every device contributes to exactly one of Inside or Outside.
type Occupancy struct {
	Inside  int `json:"inside"`
	Outside int `json:"outside"`
	Total   int `json:"total"`
}

// ComputeStats derives occupancy counts from a device set.
// A device is outside only once an outgoing movement has been delivered;
// every other device is presumed on site.
func ComputeStats(devices []Device) Occupancy {
	var o Occupancy
	for i := range devices {
		if devices[i].IsOutside() {
			o.Outside++
		} else {
			o.Inside++
		}
	}
	o.Total = len(devices)
	return o
}

// FilterByStatus returns the devices whose status matches the filter.
// FilterAll (or an empty filter) returns the input unchanged.
// The input slice is never modified.
func FilterByStatus(devices []Device, filter StatusFilter) []Device {
	if filter == "" || filter == FilterAll {
		return devices
	}
	out := make([]Device, 0, len(devices))
	for i := range devices {
		if StatusFilter(devices[i].Status) == filter {
			out = append(out, devices[i])
		}
	}
	return out
}

// CountByStatus returns how many devices are in each status.
// Every status is present in the result, including those with zero devices.
func CountByStatus(devices []Device) map[Status]int {
	counts := make(map[Status]int, len(AllStatuses()))
	for _, s := range AllStatuses() {
		counts[s] = 0
	}
	for i := range devices {
		counts[devices[i].Status]++
	}
	return counts
}
