package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the devices table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// A second connection would see a different :memory: database.
	db.SetMaxOpenConns(1)

	// Create devices table matching the schema
	schema := `
		CREATE TABLE devices (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL CHECK (length(trim(name)) > 0),
			brand         TEXT NOT NULL CHECK (length(trim(brand)) > 0),
			serial_number TEXT NOT NULL CHECK (length(trim(serial_number)) > 0),
			responsible   TEXT NOT NULL CHECK (length(trim(responsible)) > 0),
			reason        TEXT NOT NULL CHECK (length(trim(reason)) > 0),
			movement_type TEXT NOT NULL CHECK (movement_type IN ('entrada', 'salida')),
			status        TEXT NOT NULL DEFAULT 'pendiente'
			              CHECK (status IN ('pendiente', 'validado', 'entregado')),
			created_at    TEXT NOT NULL,
			updated_at    TEXT
		) STRICT;
		CREATE INDEX idx_devices_serial_number ON devices(serial_number);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a valid device for testing.
func testDevice(id string, movement MovementType, at time.Time) *Device {
	return &Device{
		ID:           id,
		Name:         "Laptop",
		Brand:        "Dell",
		SerialNumber: "SN-" + id,
		Responsible:  "Ana",
		Reason:       "Reparación",
		MovementType: movement,
		Status:       StatusPending,
		Timestamp:    at,
	}
}

func TestSQLiteRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	at := time.Date(2026, 10, 18, 9, 15, 30, 123456789, time.UTC)
	d := testDevice("dev-1", MovementOutgoing, at)
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if *got != *d {
		t.Errorf("GetByID() = %+v, want %+v", got, d)
	}
	if !got.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want nanosecond round trip %v", got.Timestamp, at)
	}
}

func TestSQLiteRepository_Create_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("dev-1", MovementIncoming, time.Now().UTC())
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, d); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestSQLiteRepository_Create_DuplicateSerial(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	a := testDevice("dev-1", MovementIncoming, time.Now().UTC())
	b := testDevice("dev-2", MovementOutgoing, time.Now().UTC())
	b.SerialNumber = a.SerialNumber

	for _, d := range []*Device{a, b} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create(%s) error = %v", d.ID, err)
		}
	}
}

func TestSQLiteRepository_Create_DefaultsTimestamp(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("dev-1", MovementIncoming, time.Time{})
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.Timestamp.IsZero() {
		t.Error("Create() should stamp a zero timestamp")
	}
}

func TestSQLiteRepository_Create_SchemaRejectsBadValues(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("dev-1", MovementType("transfer"), time.Now().UTC())
	if err := repo.Create(ctx, d); err == nil {
		t.Error("Create() should fail the movement_type CHECK constraint")
	}

	d = testDevice("dev-2", MovementIncoming, time.Now().UTC())
	d.Brand = "  "
	if err := repo.Create(ctx, d); err == nil {
		t.Error("Create() should fail the brand CHECK constraint")
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %v, want empty non-nil slice", empty)
	}

	base := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		if err := repo.Create(ctx, testDevice(id, MovementIncoming, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"c", "a", "b"}
	if len(devices) != len(want) {
		t.Fatalf("List() returned %d devices, want %d", len(devices), len(want))
	}
	for i, d := range devices {
		if d.ID != want[i] {
			t.Errorf("List()[%d] = %s, want %s (oldest first)", i, d.ID, want[i])
		}
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	d := testDevice("dev-1", MovementOutgoing, time.Now().UTC())
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	validated := StatusValidated
	if err := repo.Update(ctx, "dev-1", Patch{Status: &validated}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusValidated {
		t.Errorf("Status = %q, want validado", got.Status)
	}
	if !got.Timestamp.Equal(d.Timestamp) {
		t.Error("Update() must not change the registration timestamp")
	}

	var updatedAt sql.NullString
	if err := db.QueryRow("SELECT updated_at FROM devices WHERE id = ?", "dev-1").Scan(&updatedAt); err != nil {
		t.Fatalf("reading updated_at: %v", err)
	}
	if !updatedAt.Valid {
		t.Error("Update() should set updated_at")
	}
}

func TestSQLiteRepository_Update_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	validated := StatusValidated
	if err := repo.Update(ctx, "missing", Patch{Status: &validated}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Update(ctx, "missing", Patch{}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() with empty patch error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_Update_EmptyPatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", MovementIncoming, time.Now().UTC())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Update(ctx, "dev-1", Patch{}); err != nil {
		t.Errorf("Update() with empty patch error = %v", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testDevice("dev-1", MovementIncoming, time.Now().UTC())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete(ctx, "dev-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrDeviceNotFound", err)
	}
	if err := repo.Delete(ctx, "dev-1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Delete() twice error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_WithRegistry(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(NewSQLiteRepository(db))
	ctx := context.Background()

	d, err := reg.CreateDevice(ctx, CreateInput{
		DeviceType:   DeviceTypeProjector,
		Brand:        "Epson",
		SerialNumber: "EP-42",
		Responsible:  "Marta",
		Reason:       "Evento externo",
		MovementType: MovementOutgoing,
	})
	if err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	for _, st := range []Status{StatusValidated, StatusDelivered} {
		if _, err := reg.TransitionDevice(ctx, d.ID, st); err != nil {
			t.Fatalf("TransitionDevice(%s) error = %v", st, err)
		}
	}

	// A fresh registry over the same database sees the persisted state.
	fresh := NewRegistry(NewSQLiteRepository(db))
	if err := fresh.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	stats, err := fresh.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats != (Occupancy{Inside: 0, Outside: 1, Total: 1}) {
		t.Errorf("Stats() = %+v, want one device outside", stats)
	}
}
