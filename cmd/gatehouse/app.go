package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/nerrad567/gatehouse/internal/api"
	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/device"
	"github.com/nerrad567/gatehouse/internal/discovery"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/database"
	"github.com/nerrad567/gatehouse/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
	"github.com/nerrad567/gatehouse/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatehouse/internal/notify"
	"github.com/nerrad567/gatehouse/internal/storage"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configPathEnv overrides the default config path when --config is not given.
const configPathEnv = "GATEHOUSE_CONFIG"

// loadDotEnv loads environment variables from path when it exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath returns the flag value, then GATEHOUSE_CONFIG, then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// app holds the components shared by every command that touches devices.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	db       *database.DB
	store    storage.Store
	registry *device.Registry
	audit    *audit.SQLiteRepository
}

// openApp loads configuration, opens and migrates the SQLite database and
// the configured device store, and warms the registry cache.
func openApp(ctx context.Context, configPath string, log *logging.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if log == nil {
		log = logging.New(cfg.Logging, version)
	}

	// SQLite is opened for every provider: it always holds the audit trail.
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := db.Migrate(ctx)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Debug("database ready", "path", cfg.Database.Path, "migrations_applied", applied)

	store, err := storage.Open(ctx, cfg.Storage, db.DB)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Provider, err)
	}

	registry := device.NewRegistry(store)
	registry.SetLogger(log.Component("registry"))
	if err := registry.RefreshCache(ctx); err != nil {
		store.Close() //nolint:errcheck // Best effort cleanup on error path
		db.Close()    //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("loading device registry: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		registry: registry,
		audit:    audit.NewSQLiteRepository(db.DB),
	}, nil
}

// Close releases the store and the database.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.db.Close())
}

// serve runs the API server and its optional integrations until ctx ends.
func serve(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gatehouse",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	a, err := openApp(ctx, configPath, nil)
	if err != nil {
		return err
	}
	defer func() {
		a.log.Info("closing storage and database")
		if closeErr := a.Close(); closeErr != nil {
			a.log.Error("error closing storage", "error", closeErr)
		}
	}()
	cfg, log := a.cfg, a.log
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"storage", cfg.Storage.Provider,
		"devices", a.registry.GetDeviceCount(),
	)

	mqttClient := connectMQTT(cfg, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient := connectInflux(cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		return fmt.Errorf("configuring operator auth: %w", err)
	}
	if authenticator != nil {
		if stale := authenticator.StaleHashes(); len(stale) > 0 {
			log.Warn("operator password hashes should be regenerated with hash-password", "operators", stale)
		}
	}

	dispatcher := notify.NewDispatcher(notify.FromConfig(cfg.Notifications))
	dispatcher.SetLogger(log.Component("notify"))

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Site:      cfg.Site,
		Logger:    log.Component("api"),
		Registry:  a.registry,
		AuditRepo: a.audit,
		Auth:      authenticator,
		MQTT:      mqttClient,
		Influx:    influxClient,
		Notifier:  dispatcher,
		DB:        a.db.DB,
		Location:  cfg.Location(),
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.Discovery.Enabled {
		advertiser, advErr := discovery.Advertise(discovery.InfoFromConfig(cfg, version))
		if advErr != nil {
			log.Warn("mDNS advertisement failed", "error", advErr)
		} else {
			defer advertiser.Shutdown()
			log.Info("advertising on local network", "service", cfg.Discovery.Service)
		}
	}

	if err := a.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT health check failed", "error", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"auth", authenticator != nil,
		"notifiers", dispatcher.Enabled(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectMQTT connects when enabled. A failed connection is logged and the
// server runs without movement events rather than refusing to start.
func connectMQTT(cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		log.Warn("MQTT unavailable, continuing without movement events", "error", err)
		return nil
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

// connectInflux connects when enabled, degrading the same way as connectMQTT.
func connectInflux(cfg *config.Config, log *logging.Logger) *influxdb.Client {
	if !cfg.InfluxDB.Enabled {
		log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		log.Warn("InfluxDB unavailable, continuing without occupancy metrics", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

// buildAuthenticator returns nil when operator auth is disabled.
func buildAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	if !cfg.Security.Auth.Enabled {
		return nil, nil
	}
	ops := make([]auth.Operator, 0, len(cfg.Security.Auth.Operators))
	for _, op := range cfg.Security.Auth.Operators {
		ops = append(ops, auth.Operator{Username: op.Username, PasswordHash: op.PasswordHash})
	}
	return auth.NewAuthenticator(ops, cfg.Security.JWT.Secret, cfg.Site.ID, cfg.GetAccessTokenTTL())
}
