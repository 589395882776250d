// Package influxdb records Gatehouse occupancy history in InfluxDB.
//
// It wraps influxdb-client-go v2 with connection management, a batching
// non-blocking write API and health checks. Two measurements are written:
//
//	occupancy        site_id                                  inside, outside, total
//	device_movement  site_id, action, movement_type, status   device_id, count
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteOccupancy(cfg.Site.ID, stats.Inside, stats.Outside)
//
// Write errors are delivered asynchronously through SetOnError.
// All methods are safe for concurrent use.
package influxdb
