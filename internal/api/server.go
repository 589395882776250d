package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/auth"
	"github.com/nerrad567/gatehouse/internal/device"
	"github.com/nerrad567/gatehouse/internal/infrastructure/config"
	"github.com/nerrad567/gatehouse/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatehouse/internal/infrastructure/logging"
	"github.com/nerrad567/gatehouse/internal/infrastructure/mqtt"
	"github.com/nerrad567/gatehouse/internal/notify"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
// Logger and Registry are required; everything else is optional and the
// matching side effect is skipped when absent.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Site     config.SiteConfig
	Logger   *logging.Logger
	Registry *device.Registry

	AuditRepo audit.Repository
	Auth      *auth.Authenticator // nil disables bearer auth
	MQTT      *mqtt.Client
	Influx    *influxdb.Client
	Notifier  *notify.Dispatcher
	DB        *sql.DB // metrics only

	// Location renders timestamps for people (CSV export, notifications).
	Location *time.Location
	Version  string
}

// Server is the HTTP API server for Gatehouse.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub and
// the asynchronous audit writer. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	site      config.SiteConfig
	logger    *logging.Logger
	registry  *device.Registry
	audit     *auditWriter
	auth      *auth.Authenticator
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	notifier  *notify.Dispatcher
	db        *sql.DB
	location  *time.Location
	version   string
	startTime time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc // cancels background goroutines on Close()
	done   chan struct{}      // closed when the audit writer has drained
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		site:      deps.Site,
		logger:    deps.Logger,
		registry:  deps.Registry,
		audit:     newAuditWriter(deps.AuditRepo, deps.Logger),
		auth:      deps.Auth,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		notifier:  deps.Notifier,
		db:        deps.DB,
		location:  loc,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}
	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests and embedding callers can serve it directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and the audit writer, then launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if s.audit != nil {
			s.audit.run(srvCtx)
		}
	}()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then stops
// the hub, flushes queued audit entries and waits for pending notifications.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.notifier.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
