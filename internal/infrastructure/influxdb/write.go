package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementOccupancy = "occupancy"
	MeasurementMovement  = "device_movement"
)

// Movement is one device lifecycle event as stored in device_movement.
type Movement struct {
	SiteID       string
	DeviceID     string
	Action       string // created, validated, delivered, deleted
	MovementType string
	Status       string
	At           time.Time // zero means now
}

// WriteOccupancy records the current inside/outside counts for a site.
//
//	client.WriteOccupancy("gate-001", 12, 3)
func (c *Client) WriteOccupancy(siteID string, inside, outside int) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(occupancyPoint(siteID, inside, outside, time.Now()))
}

// WriteMovement records one lifecycle event. Dropped when disconnected.
func (c *Client) WriteMovement(m Movement) {
	if !c.IsConnected() {
		return
	}
	if m.At.IsZero() {
		m.At = time.Now()
	}
	c.writer.WritePoint(movementPoint(m))
}

func occupancyPoint(siteID string, inside, outside int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementOccupancy,
		map[string]string{"site_id": siteID},
		map[string]any{
			"inside":  inside,
			"outside": outside,
			"total":   inside + outside,
		},
		ts,
	)
}

func movementPoint(m Movement) *write.Point {
	return write.NewPoint(
		MeasurementMovement,
		map[string]string{
			"site_id":       m.SiteID,
			"action":        m.Action,
			"movement_type": m.MovementType,
			"status":        m.Status,
		},
		// device_id is a field: unbounded cardinality does not belong in tags.
		map[string]any{
			"device_id": m.DeviceID,
			"count":     1,
		},
		m.At,
	)
}
