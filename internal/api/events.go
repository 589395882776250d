package api

import (
	"context"
	"time"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/device"
	"github.com/nerrad567/gatehouse/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatehouse/internal/notify"
)

// Lifecycle event names. They appear on MQTT, in InfluxDB tags and (via
// channelFor) as WebSocket event types.
const (
	eventCreated   = "created"
	eventValidated = "validated"
	eventDelivered = "delivered"
	eventDeleted   = "deleted"
)

// WebSocket channels.
const (
	ChannelDeviceCreated = "device.created"
	ChannelDeviceUpdated = "device.updated"
	ChannelDeviceDeleted = "device.deleted"
	ChannelStatsChanged  = "stats.changed"
)

// movementEvent is the MQTT payload published on gatehouse/device/{id}/event.
type movementEvent struct {
	Event        string              `json:"event"`
	DeviceID     string              `json:"device_id"`
	Name         string              `json:"name"`
	SerialNumber string              `json:"serial_number"`
	MovementType device.MovementType `json:"movement_type"`
	Status       device.Status       `json:"status"`
	Operator     string              `json:"operator,omitempty"`
	SiteID       string              `json:"site_id"`
	Timestamp    string              `json:"timestamp"`
}

// occupancyMessage is the retained MQTT payload on gatehouse/stats/occupancy.
type occupancyMessage struct {
	device.Occupancy
	SiteID    string `json:"site_id"`
	UpdatedAt string `json:"updated_at"`
}

func eventForStatus(st device.Status) string {
	switch st {
	case device.StatusValidated:
		return eventValidated
	case device.StatusDelivered:
		return eventDelivered
	default:
		return eventCreated
	}
}

var auditActions = map[string]string{
	eventCreated:   audit.ActionCreate,
	eventValidated: audit.ActionValidate,
	eventDelivered: audit.ActionDeliver,
	eventDeleted:   audit.ActionDelete,
}

var notifyKinds = map[string]notify.Kind{
	eventCreated:   notify.KindRegistered,
	eventValidated: notify.KindValidated,
	eventDelivered: notify.KindDelivered,
}

func channelFor(event string) string {
	switch event {
	case eventCreated:
		return ChannelDeviceCreated
	case eventDeleted:
		return ChannelDeviceDeleted
	default:
		return ChannelDeviceUpdated
	}
}

// afterMutation fans a successful registry change out to every configured
// sink. Each sink is best effort: failures are logged and the request that
// caused the change still succeeds.
func (s *Server) afterMutation(ctx context.Context, event string, dev device.Device, operator string) {
	s.auditLog(auditActions[event], audit.EntityDevice, dev.ID, operator, map[string]any{
		"name":          dev.Name,
		"serial_number": dev.SerialNumber,
		"movement_type": dev.MovementType,
		"status":        dev.Status,
	})

	if event == eventDeleted {
		s.hub.Broadcast(ChannelDeviceDeleted, map[string]string{"id": dev.ID})
	} else {
		s.hub.Broadcast(channelFor(event), newDeviceView(dev))
	}

	now := time.Now().UTC()
	s.publishMovement(movementEvent{
		Event:        event,
		DeviceID:     dev.ID,
		Name:         dev.Name,
		SerialNumber: dev.SerialNumber,
		MovementType: dev.MovementType,
		Status:       dev.Status,
		Operator:     operator,
		SiteID:       s.site.ID,
		Timestamp:    now.Format(time.RFC3339),
	})
	s.influx.WriteMovement(influxdb.Movement{
		SiteID:       s.site.ID,
		DeviceID:     dev.ID,
		Action:       event,
		MovementType: string(dev.MovementType),
		Status:       string(dev.Status),
		At:           now,
	})

	occ, err := s.registry.Stats(ctx)
	if err != nil {
		s.logger.Warn("computing occupancy after mutation failed", "device_id", dev.ID, "error", err)
		return
	}

	s.hub.Broadcast(ChannelStatsChanged, occ)
	s.publishOccupancy(occ, now)
	s.influx.WriteOccupancy(s.site.ID, occ.Inside, occ.Outside)

	if kind, ok := notifyKinds[event]; ok {
		s.notifier.Dispatch(notify.Event{
			Kind:      kind,
			Device:    dev,
			Actor:     operator,
			Site:      s.siteName(),
			Occupancy: occ,
			Location:  s.location,
		})
	}
}

func (s *Server) publishMovement(ev movementEvent) {
	if s.mqtt == nil {
		return
	}
	if err := s.mqtt.PublishMovement(ev.DeviceID, ev); err != nil {
		s.logger.Warn("publishing movement event failed", "device_id", ev.DeviceID, "error", err)
	}
}

func (s *Server) publishOccupancy(occ device.Occupancy, now time.Time) {
	if s.mqtt == nil {
		return
	}
	msg := occupancyMessage{Occupancy: occ, SiteID: s.site.ID, UpdatedAt: now.Format(time.RFC3339)}
	if err := s.mqtt.PublishOccupancy(msg); err != nil {
		s.logger.Warn("publishing occupancy failed", "error", err)
	}
}

func (s *Server) siteName() string {
	if s.site.Name != "" {
		return s.site.Name
	}
	return s.site.ID
}
