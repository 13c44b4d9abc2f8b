package monitoring

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"serialbridge/config"
	"serialbridge/session"
)

//go:embed dashboard.html
var dashboardHTML string

// DefaultConfigPath is where the service reads and writes its configuration
const DefaultConfigPath = "/etc/serialbridge/config.json"

// Server provides the HTTP control and monitoring endpoints
type Server struct {
	config  *config.MonitoringConfig
	manager *session.Manager
	records *RecordBuffer
	stream  *StreamHandler
	handler http.Handler
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a new monitoring server
func NewServer(cfg *config.MonitoringConfig, instanceID, version string, manager *session.Manager, logger *slog.Logger) *Server {
	return NewServerWithConfigPath(cfg, instanceID, version, manager, logger, DefaultConfigPath)
}

// NewServerWithConfigPath creates a new monitoring server with a custom config path
func NewServerWithConfigPath(cfg *config.MonitoringConfig, instanceID, version string, manager *session.Manager, logger *slog.Logger, configPath string) *Server {
	logger = logger.With("component", "monitoring")
	mux := http.NewServeMux()

	records := NewRecordBuffer(cfg.RecentRecords)
	records.Attach(manager)

	limiter := rate.NewLimiter(rate.Limit(cfg.CommandsPerSecond), cfg.CommandBurst)
	limited := RateLimit(limiter)

	// Health endpoint
	mux.Handle("/health", NewHealthHandler(instanceID, version, manager))

	// Metrics endpoint (Prometheus format)
	mux.Handle("/metrics", NewMetricsHandler(manager))

	// Session control
	sessionHandler := NewSessionHandler(manager, logger)
	mux.HandleFunc("GET /api/ports", sessionHandler.Ports)
	mux.HandleFunc("GET /api/session", sessionHandler.Session)
	mux.Handle("POST /api/connect", limited(http.HandlerFunc(sessionHandler.Connect)))
	mux.Handle("POST /api/disconnect", limited(http.HandlerFunc(sessionHandler.Disconnect)))
	mux.Handle("POST /api/send", limited(http.HandlerFunc(sessionHandler.Send)))

	// Config endpoint
	mux.Handle("/api/config", NewConfigHandler(configPath))

	// Records endpoint
	mux.Handle("/api/records", NewRecordsHandler(records))

	// System ports endpoint
	mux.Handle("/api/sysports", NewSysPortsHandler())

	// Live event stream
	stream := NewStreamHandler(manager, logger)
	mux.Handle("/ws", stream)

	// Dashboard endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, dashboardHTML)
	})

	return &Server{
		config:  cfg,
		manager: manager,
		records: records,
		stream:  stream,
		handler: mux,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			// no WriteTimeout: /ws streams stay open
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Records returns the buffer of recent records
func (s *Server) Records() *RecordBuffer {
	return s.records
}

// Start starts the monitoring server
func (s *Server) Start() error {
	s.logger.Info("Starting monitoring server", "port", s.config.Port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Monitoring server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the monitoring server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping monitoring server")
	s.stream.CloseAll()
	s.records.Detach()
	return s.server.Shutdown(ctx)
}
