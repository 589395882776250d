package mqtt

import "fmt"

// TopicPrefix is the root of every Gatehouse topic.
const TopicPrefix = "gatehouse"

// Topics builds Gatehouse MQTT topic names.
//
//	gatehouse/device/{device_id}/event      movement events (not retained)
//	gatehouse/stats/occupancy               inside/outside counts (retained)
//	gatehouse/system/status                 online/offline, LWT (retained)
//
// Site IDs travel in payloads, not topics, so dashboards subscribe to one
// pattern regardless of how many gates share the broker.
type Topics struct{}

// DeviceEvent returns the topic for lifecycle events of one device.
//
// Example: gatehouse/device/5f0c.../event
func (Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/event", TopicPrefix, deviceID)
}

// AllDeviceEvents returns a wildcard matching every device event.
func (Topics) AllDeviceEvents() string {
	return TopicPrefix + "/device/+/event"
}

// Occupancy returns the retained occupancy topic.
func (Topics) Occupancy() string {
	return TopicPrefix + "/stats/occupancy"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}
