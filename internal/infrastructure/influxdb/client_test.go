package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
)

// testConfig returns a configuration for a local development InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "gatehouse-dev-token",
		Org:           "gatehouse",
		Bucket:        "occupancy",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip skips the test when InfluxDB is not running.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()

	client, err := Connect(testConfig())
	if err != nil {
		t.Skipf("InfluxDB not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

// =============================================================================
// Connection
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestBatchSettings(t *testing.T) {
	tests := []struct {
		name          string
		batch, flush  int
		wantBatch     int
		wantFlushSecs int
	}{
		{"configured", 50, 2, 50, 2},
		{"zero uses defaults", 0, 0, defaultBatchSize, defaultFlushInterval},
		{"negative uses defaults", -5, -1, defaultBatchSize, defaultFlushInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BatchSize = tt.batch
			cfg.FlushInterval = tt.flush

			batch, flush := batchSettings(cfg)
			if batch != tt.wantBatch || flush != tt.wantFlushSecs {
				t.Errorf("batchSettings() = (%d, %d), want (%d, %d)", batch, flush, tt.wantBatch, tt.wantFlushSecs)
			}
		})
	}
}

func TestNilAndDisconnectedClient(t *testing.T) {
	var nilClient *Client
	if nilClient.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := nilClient.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}

	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	// Writes on a disconnected client are dropped without panicking.
	c.WriteOccupancy("gate-001", 1, 2)
	c.WriteMovement(Movement{SiteID: "gate-001", DeviceID: "dev-1", Action: "created"})
	c.Flush()
}

// =============================================================================
// Points
// =============================================================================

func TestOccupancyPoint(t *testing.T) {
	ts := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	line := lineProtocol(occupancyPoint("gate-001", 7, 3, ts))

	for _, want := range []string{
		"occupancy,site_id=gate-001 ",
		"inside=7i",
		"outside=3i",
		"total=10i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), "1792324800000000000") {
		t.Errorf("line protocol %q has wrong timestamp", line)
	}
}

func TestMovementPoint(t *testing.T) {
	line := lineProtocol(movementPoint(Movement{
		SiteID: "gate-001", DeviceID: "dev-9", Action: "delivered",
		MovementType: "salida", Status: "entregado", At: time.Now(),
	}))

	for _, want := range []string{
		"device_movement,",
		"action=delivered",
		"movement_type=salida",
		"site_id=gate-001",
		"status=entregado",
		`device_id="dev-9"`,
		"count=1i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line protocol %q missing %q", line, want)
		}
	}
}

// =============================================================================
// Integration
// =============================================================================

func TestWriteAndFlush(t *testing.T) {
	client := connectOrSkip(t)

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteOccupancy("gate-test", 2, 1)
	client.WriteMovement(Movement{
		SiteID: "gate-test", DeviceID: "dev-1", Action: "created",
		MovementType: "entrada", Status: "pendiente",
	})
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error: %v", writeErr)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	client := connectOrSkip(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() should fail for cancelled context")
	}
}
