package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "north-gate"
  timezone: "America/Mexico_City"
storage:
  provider: "sqlite"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  auth:
    enabled: true
    operators:
      - username: "guard"
        password_hash: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "north-gate" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "north-gate")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if len(cfg.Security.Auth.Operators) != 1 || cfg.Security.Auth.Operators[0].Username != "guard" {
		t.Errorf("Operators = %+v", cfg.Security.Auth.Operators)
	}
	if cfg.Location().String() != "America/Mexico_City" {
		t.Errorf("Location() = %v", cfg.Location())
	}
	// Untouched sections keep defaults
	if cfg.Discovery.Service != "_gatehouse._tcp" {
		t.Errorf("Discovery.Service = %q, want default", cfg.Discovery.Service)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.Provider != StorageSQLite {
		t.Errorf("Storage.Provider = %q, want %q", cfg.Storage.Provider, StorageSQLite)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: ""
`)

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "/from/file.db"
api:
  port: 8080
`)

	t.Setenv("GATEHOUSE_DATABASE_PATH", "/from/env.db")
	t.Setenv("GATEHOUSE_API_PORT", "9090")
	t.Setenv("GATEHOUSE_STORAGE_PROVIDER", "memory")
	t.Setenv("GATEHOUSE_MQTT_ENABLED", "true")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Storage.Provider != StorageMemory {
		t.Errorf("Storage.Provider = %q, want memory", cfg.Storage.Provider)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("GATEHOUSE_API_PORT", "not-a-port")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "GATEHOUSE_API_PORT") {
		t.Errorf("Load() error = %v, want GATEHOUSE_API_PORT parse error", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: "site.id",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Site.Timezone = "Mars/Olympus" },
			wantErr: "site.timezone",
		},
		{
			name:    "unknown storage provider",
			mutate:  func(c *Config) { c.Storage.Provider = "postgres" },
			wantErr: "storage.provider",
		},
		{
			name:    "mysql without dsn",
			mutate:  func(c *Config) { c.Storage.Provider = StorageMySQL },
			wantErr: "storage.mysql.dsn",
		},
		{
			name: "dynamodb without table",
			mutate: func(c *Config) {
				c.Storage.Provider = StorageDynamoDB
				c.Storage.DynamoDB.Table = ""
			},
			wantErr: "storage.dynamodb.table",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "auth enabled without secret",
			mutate:  func(c *Config) { c.Security.Auth.Enabled = true },
			wantErr: "security.jwt.secret",
		},
		{
			name: "auth enabled with short secret",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.JWT.Secret = "short"
			},
			wantErr: "at least 32 characters",
		},
		{
			name: "auth enabled without operators",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
			},
			wantErr: "security.auth.operators",
		},
		{
			name: "auth enabled and complete",
			mutate: func(c *Config) {
				c.Security.Auth.Enabled = true
				c.Security.JWT.Secret = validJWTSecret
				c.Security.Auth.Operators = []OperatorConfig{{Username: "guard", PasswordHash: "$argon2id$x"}}
			},
		},
		{
			name:    "slack enabled without webhook",
			mutate:  func(c *Config) { c.Notifications.Slack.Enabled = true },
			wantErr: "webhook_url",
		},
		{
			name: "email enabled without recipients",
			mutate: func(c *Config) {
				c.Notifications.Email.Enabled = true
				c.Notifications.Email.Host = "smtp.local"
				c.Notifications.Email.From = "gate@example.com"
			},
			wantErr: "notifications.email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_ReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.ID = ""
	cfg.API.Port = 70000

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"site.id", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
	if got := cfg.GetAccessTokenTTL(); got != time.Hour {
		t.Errorf("GetAccessTokenTTL() = %v, want 1h", got)
	}
}

func TestConfig_LocationFallback(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.Timezone = "Not/AZone"

	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}
