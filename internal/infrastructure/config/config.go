package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage provider names accepted by storage.provider.
const (
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
	StorageMySQL    = "mysql"
	StorageDynamoDB = "dynamodb"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "GATEHOUSE_"

// Config is the root configuration structure for Gatehouse.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
	Security      SecurityConfig      `yaml:"security"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
}

// SiteConfig identifies the facility whose gate is being tracked.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Timezone is an IANA zone name used when rendering timestamps for people
	// (CSV export, notifications). Storage is always UTC.
	Timezone string `yaml:"timezone"`
}

// StorageConfig selects the device store.
type StorageConfig struct {
	// Provider is one of sqlite, memory, mysql, dynamodb.
	Provider string         `yaml:"provider"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

// MySQLConfig contains MySQL connection settings for the gorm store.
type MySQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// DynamoDBConfig contains DynamoDB table settings.
type DynamoDBConfig struct {
	Region string `yaml:"region"`
	Table  string `yaml:"table"`
	// Endpoint overrides the AWS endpoint (DynamoDB Local, LocalStack).
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	CreateTable     bool   `yaml:"create_table"`
}

// DatabaseConfig contains SQLite database settings.
// The SQLite database always holds the audit trail, and the devices when
// storage.provider is sqlite.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains operator authentication settings.
type SecurityConfig struct {
	Auth AuthConfig `yaml:"auth"`
	JWT  JWTConfig  `yaml:"jwt"`
}

// AuthConfig enables bearer-token protection of mutating and listing routes.
type AuthConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Operators []OperatorConfig `yaml:"operators"`
}

// OperatorConfig is a gate operator allowed to log in.
// PasswordHash is an Argon2id PHC string from `gatehouse hash-password`.
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// AccessTokenTTL is the token lifetime in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// NotificationsConfig contains outbound notification settings.
type NotificationsConfig struct {
	Slack SlackConfig `yaml:"slack"`
	Email EmailConfig `yaml:"email"`
}

// SlackConfig posts movement notifications to an incoming webhook.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// EmailConfig sends movement notifications over SMTP.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// DiscoveryConfig advertises the API on the local network over mDNS.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// A missing file is not an error: defaults plus environment are used, so a
// container can be configured from the environment alone.
//
// Environment variables follow the pattern: GATEHOUSE_SECTION_KEY
// For example: GATEHOUSE_DATABASE_PATH, GATEHOUSE_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults and environment only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "gate-001",
			Name:     "Gatehouse",
			Timezone: "UTC",
		},
		Storage: StorageConfig{
			Provider: StorageSQLite,
			MySQL: MySQLConfig{
				MaxOpenConns: 10,
				AutoMigrate:  true,
			},
			DynamoDB: DynamoDBConfig{
				Region: "us-east-1",
				Table:  "gatehouse-devices",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/gatehouse.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "gatehouse",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
		Notifications: NotificationsConfig{
			Email: EmailConfig{
				Port: 587,
			},
		},
		Discovery: DiscoveryConfig{
			Instance: "Gatehouse",
			Service:  "_gatehouse._tcp",
			Domain:   "local.",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"SITE_ID":                  &cfg.Site.ID,
		"SITE_TIMEZONE":            &cfg.Site.Timezone,
		"STORAGE_PROVIDER":         &cfg.Storage.Provider,
		"MYSQL_DSN":                &cfg.Storage.MySQL.DSN,
		"DYNAMODB_REGION":          &cfg.Storage.DynamoDB.Region,
		"DYNAMODB_TABLE":           &cfg.Storage.DynamoDB.Table,
		"DYNAMODB_ENDPOINT":        &cfg.Storage.DynamoDB.Endpoint,
		"DYNAMODB_ACCESS_KEY_ID":   &cfg.Storage.DynamoDB.AccessKeyID,
		"DYNAMODB_SECRET_KEY":      &cfg.Storage.DynamoDB.SecretAccessKey,
		"DATABASE_PATH":            &cfg.Database.Path,
		"MQTT_HOST":                &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":            &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":            &cfg.MQTT.Auth.Password,
		"API_HOST":                 &cfg.API.Host,
		"INFLUXDB_URL":             &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN":           &cfg.InfluxDB.Token,
		"LOG_LEVEL":                &cfg.Logging.Level,
		"JWT_SECRET":               &cfg.Security.JWT.Secret,
		"SLACK_WEBHOOK_URL":        &cfg.Notifications.Slack.WebhookURL,
		"SMTP_HOST":                &cfg.Notifications.Email.Host,
		"SMTP_USERNAME":            &cfg.Notifications.Email.Username,
		"SMTP_PASSWORD":            &cfg.Notifications.Email.Password,
		"DISCOVERY_INSTANCE":       &cfg.Discovery.Instance,
		"NOTIFICATIONS_EMAIL_FROM": &cfg.Notifications.Email.From,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"API_PORT":  &cfg.API.Port,
		"MQTT_PORT": &cfg.MQTT.Broker.Port,
		"SMTP_PORT": &cfg.Notifications.Email.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parsing %s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"MQTT_ENABLED":      &cfg.MQTT.Enabled,
		"INFLUXDB_ENABLED":  &cfg.InfluxDB.Enabled,
		"AUTH_ENABLED":      &cfg.Security.Auth.Enabled,
		"SLACK_ENABLED":     &cfg.Notifications.Slack.Enabled,
		"EMAIL_ENABLED":     &cfg.Notifications.Email.Enabled,
		"DISCOVERY_ENABLED": &cfg.Discovery.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parsing %s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	validProviders := []string{StorageSQLite, StorageMemory, StorageMySQL, StorageDynamoDB}
	switch {
	case !slices.Contains(validProviders, c.Storage.Provider):
		errs = append(errs, fmt.Sprintf("storage.provider must be one of %s", strings.Join(validProviders, ", ")))
	case c.Storage.Provider == StorageMySQL && c.Storage.MySQL.DSN == "":
		errs = append(errs, "storage.mysql.dsn is required for the mysql provider")
	case c.Storage.Provider == StorageDynamoDB && c.Storage.DynamoDB.Table == "":
		errs = append(errs, "storage.dynamodb.table is required for the dynamodb provider")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when InfluxDB is enabled")
	}

	errs = append(errs, c.validateSecurity()...)

	if c.Notifications.Slack.Enabled && c.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when Slack is enabled")
	}
	if e := c.Notifications.Email; e.Enabled && (e.Host == "" || e.From == "" || len(e.To) == 0) {
		errs = append(errs, "notifications.email.host, from and to are required when email is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateSecurity checks the auth section. A signing secret is only
// required when authentication is switched on.
func (c *Config) validateSecurity() []string {
	if !c.Security.Auth.Enabled {
		return nil
	}

	var errs []string
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required when auth is enabled (set GATEHOUSE_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl must be positive")
	}
	if len(c.Security.Auth.Operators) == 0 {
		errs = append(errs, "security.auth.operators must list at least one operator when auth is enabled")
	}
	for i, op := range c.Security.Auth.Operators {
		if op.Username == "" || op.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("security.auth.operators[%d] needs username and password_hash", i))
		}
	}
	return errs
}

// Location returns the site timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetAccessTokenTTL returns the JWT lifetime as a Duration.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}
