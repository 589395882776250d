package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/device"
)

// writeTestConfig writes a config using a fresh SQLite file and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site
  name: "Puerta de prueba"
  timezone: "UTC"
storage:
  provider: sqlite
database:
  path: "` + filepath.Join(dir, "gatehouse.db") + `"
  wal_mode: true
  busy_timeout: 5
logging:
  level: error
  output: discard
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "absent.env")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("resolveConfigPath() = %q, want default", got)
	}

	t.Setenv(configPathEnv, "/etc/gatehouse.yaml")
	if got := resolveConfigPath(""); got != "/etc/gatehouse.yaml" {
		t.Errorf("resolveConfigPath() = %q, want env value", got)
	}
	if got := resolveConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("resolveConfigPath(flag) = %q, want flag value", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("GATEHOUSE_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GATEHOUSE_TEST_DOTENV", "")
	os.Unsetenv("GATEHOUSE_TEST_DOTENV")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv() error = %v", err)
	}
	if got := os.Getenv("GATEHOUSE_TEST_DOTENV"); got != "loaded" {
		t.Errorf("GATEHOUSE_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("site:\n  id: \"\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := serve(ctx, configPath); err == nil {
		t.Fatal("serve() should fail with invalid config")
	}
}

func TestMigrateCommand(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := execute(t, "", "migrate", "--config", configPath)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "applied 1 migration") {
		t.Errorf("migrate output = %q", out)
	}

	out, err = execute(t, "", "migrate", "--down", "--config", configPath)
	if err != nil {
		t.Fatalf("migrate --down: %v", err)
	}
	if !strings.Contains(out, "rolled back") {
		t.Errorf("migrate --down output = %q", out)
	}
}

func seedCLIDevices(t *testing.T, configPath string) {
	t.Helper()

	ctx := context.Background()
	a, err := openApp(ctx, configPath, nil)
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	defer a.Close()

	in := device.CreateInput{
		DeviceType: device.DeviceTypeLaptop, Brand: "Dell", SerialNumber: "SN-1",
		Responsible: "Ana", Reason: "Reparación", MovementType: device.MovementOutgoing,
	}
	out, err := a.registry.CreateDevice(ctx, in)
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	for _, st := range []device.Status{device.StatusValidated, device.StatusDelivered} {
		if _, err := a.registry.TransitionDevice(ctx, out.ID, st); err != nil {
			t.Fatalf("TransitionDevice(%s): %v", st, err)
		}
	}

	in.DeviceType = device.DeviceTypeMonitor
	in.SerialNumber = "SN-2"
	in.MovementType = device.MovementIncoming
	if _, err := a.registry.CreateDevice(ctx, in); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
}

func TestDevicesListCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	seedCLIDevices(t, configPath)

	out, err := execute(t, "", "devices", "list", "--config", configPath)
	if err != nil {
		t.Fatalf("devices list: %v", err)
	}
	for _, want := range []string{"SN-1", "SN-2", "Entregado", "Dentro: 1  Fuera: 1  Total: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "devices", "list", "--status", "pendiente", "--config", configPath)
	if err != nil {
		t.Fatalf("devices list --status: %v", err)
	}
	if strings.Contains(out, "SN-1") || !strings.Contains(out, "SN-2") {
		t.Errorf("filtered output:\n%s", out)
	}

	if _, err := execute(t, "", "devices", "list", "--status", "perdido", "--config", configPath); err == nil {
		t.Error("unknown status filter should fail")
	}
}

func TestExportCSVCommand(t *testing.T) {
	configPath := writeTestConfig(t)
	seedCLIDevices(t, configPath)

	outPath := filepath.Join(t.TempDir(), "export.csv")
	if _, err := execute(t, "", "export", "csv", "-o", outPath, "--config", configPath); err != nil {
		t.Fatalf("export csv: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}
	// Newest first: the monitor was registered last.
	if records[1][0] != device.DeviceTypeMonitor {
		t.Errorf("first row name = %q, want %q", records[1][0], device.DeviceTypeMonitor)
	}

	stdout, err := execute(t, "", "export", "csv", "-o", "-", "--config", configPath)
	if err != nil {
		t.Fatalf("export csv to stdout: %v", err)
	}
	if !strings.HasPrefix(stdout, "Nombre,") {
		t.Errorf("stdout export = %q", stdout)
	}
}

func TestHashPasswordCommand(t *testing.T) {
	out, err := execute(t, "s3cret\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	hash := strings.TrimSpace(out)
	ok, err := auth.VerifyPassword("s3cret", hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(hash) = %v, %v; want true", ok, err)
	}

	if _, err := execute(t, "\n", "hash-password"); err == nil {
		t.Error("empty password should fail")
	}
}

func TestPrintDevices(t *testing.T) {
	ts := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	devices := []device.Device{
		{ID: "a", Name: "Laptop", SerialNumber: "S1", Responsible: "Ana", MovementType: device.MovementOutgoing, Status: device.StatusDelivered, Timestamp: ts},
		{ID: "b", Name: "Monitor", SerialNumber: "S2", Responsible: "Luis", MovementType: device.MovementIncoming, Status: device.StatusValidated, Timestamp: ts},
	}

	var buf bytes.Buffer
	if err := printDevices(&buf, devices, "validado", time.UTC); err != nil {
		t.Fatalf("printDevices: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "S1") || !strings.Contains(out, "S2") {
		t.Errorf("filter not applied:\n%s", out)
	}
	if !strings.Contains(out, "01/10/2026 09:00:00") {
		t.Errorf("timestamp missing:\n%s", out)
	}
	// Totals cover every device, not just the filtered rows.
	if !strings.Contains(out, "Dentro: 1  Fuera: 1  Total: 2") {
		t.Errorf("totals missing:\n%s", out)
	}
}
