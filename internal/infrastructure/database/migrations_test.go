package database

import (
	"context"
	"embed"
	"testing"
	"time"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations points the package at the testdata migrations for one test.
func useTestMigrations(t *testing.T) {
	t.Helper()

	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = testMigrationsFS
	MigrationsDir = testMigrationsDir
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count > 0
}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := db.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Migrate() applied %d, want 2", n)
	}

	for _, table := range []string{"test_gates", "test_gate_log"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	status, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 2 || len(status.Pending) != 0 {
		t.Errorf("status = %d applied / %d pending, want 2 / 0", len(status.Applied), len(status.Pending))
	}
	if got := status.Current(); got != "20261002_090000" {
		t.Errorf("Current() = %q, want 20261002_090000", got)
	}

	// Running again should be idempotent
	n, err = db.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate() applied %d, want 0", n)
	}
}

// TestMigrateDown verifies that rollback removes only the latest migration.
func TestMigrateDown(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	version, err := db.MigrateDown(ctx)
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if version != "20261002_090000" {
		t.Errorf("MigrateDown() = %q, want 20261002_090000", version)
	}

	if tableExists(t, db, "test_gate_log") {
		t.Error("table test_gate_log should have been dropped")
	}
	if !tableExists(t, db, "test_gates") {
		t.Error("table test_gates should remain")
	}

	status, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 1 || len(status.Pending) != 1 {
		t.Errorf("status = %d applied / %d pending, want 1 / 1", len(status.Applied), len(status.Pending))
	}
}

func TestMigrateDownNothingApplied(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)

	version, err := db.MigrateDown(context.Background())
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if version != "" {
		t.Errorf("MigrateDown() = %q, want empty", version)
	}
}

// TestMigrateNoMigrations verifies behaviour with no migrations.
func TestMigrateNoMigrations(t *testing.T) {
	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	var emptyFS embed.FS
	MigrationsFS = emptyFS
	MigrationsDir = "."

	db := openTestDB(t)

	n, err := db.Migrate(context.Background())
	if err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if n != 0 {
		t.Errorf("Migrate() applied %d, want 0", n)
	}
}

// TestGetMigrationStatus verifies pending migrations are reported in order.
func TestGetMigrationStatus(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)

	status, err := db.GetMigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(status.Applied) != 0 {
		t.Errorf("expected 0 applied, got %d", len(status.Applied))
	}
	if len(status.Pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(status.Pending))
	}
	if status.Pending[0].Name != "create_gates" || status.Pending[1].Name != "add_gate_log" {
		t.Errorf("pending order = %s, %s", status.Pending[0].Name, status.Pending[1].Name)
	}
	if status.Pending[0].DownSQL == "" {
		t.Error("down SQL not loaded")
	}
	if status.Current() != "" {
		t.Errorf("Current() = %q, want empty", status.Current())
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20261018_120000_initial_schema.up.sql",
			wantVersion: "20261018_120000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20261018_120000_initial_schema.down.sql",
			wantVersion: "20261018_120000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "readme.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20261018_120000_initial_schema.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20261018_120000_initial_schema.up.sql", "initial_schema"},
		{"20261018_120000_initial_schema.down.sql", "initial_schema"},
		{"20261020_080000_add_device_notes.up.sql", "add_device_notes"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
