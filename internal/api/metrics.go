package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gatehouse/internal/device"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	SiteID        string          `json:"site_id"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          ServiceMetrics  `json:"mqtt"`
	InfluxDB      ServiceMetrics  `json:"influxdb"`
	Devices       DeviceMetrics   `json:"devices"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// ServiceMetrics reports whether an optional backend is configured and reachable.
type ServiceMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total    int            `json:"total"`
	Inside   int            `json:"inside"`
	Outside  int            `json:"outside"`
	ByStatus map[string]int `json:"by_status"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		SiteID:        s.site.ID,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.dropped.Load(),
		},
		MQTT: ServiceMetrics{
			Enabled:   s.mqtt != nil,
			Connected: s.mqtt.IsConnected(),
		},
		InfluxDB: ServiceMetrics{
			Enabled:   s.influx != nil,
			Connected: s.influx.IsConnected(),
		},
	}

	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		s.logger.Warn("listing devices for metrics failed", "error", err)
	} else {
		occ := device.ComputeStats(devices)
		metrics.Devices = DeviceMetrics{
			Total:    occ.Total,
			Inside:   occ.Inside,
			Outside:  occ.Outside,
			ByStatus: make(map[string]int),
		}
		for st, count := range device.CountByStatus(devices) {
			metrics.Devices.ByStatus[string(st)] = count
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
