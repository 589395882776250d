// Package mqtt publishes Gatehouse movement events to an MQTT broker.
//
// Downstream systems (access control, dashboards, building management)
// subscribe to device lifecycle events and the retained occupancy topic
// instead of polling the REST API. The client reconnects automatically and
// registers a Last Will so subscribers learn when the gatehouse goes away.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishOccupancy(stats)
//
// TLS should be enabled for any broker outside the local host.
package mqtt
