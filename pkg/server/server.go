package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"oneiro-hq/morpheus/pkg/alerting"
	"oneiro-hq/morpheus/pkg/config"
	"oneiro-hq/morpheus/pkg/gateway"
	"oneiro-hq/morpheus/pkg/health"
	"oneiro-hq/morpheus/pkg/metrics"
	"oneiro-hq/morpheus/pkg/snapshot"
)

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	// Gateway serves generation requests.
	Gateway *gateway.Manager

	// Health evaluates provider health.
	Health *health.Monitor

	// Metrics is the collector behind the dashboard endpoints.
	Metrics *metrics.Collector

	// Registry is the Prometheus registry the collector reports into,
	// exposed at the metrics path.
	Registry *prometheus.Registry

	// Alerts backs the alert dashboard.
	Alerts *alerting.Manager

	// Evaluator runs the threshold alert rules on the job schedule.
	// Optional.
	Evaluator *alerting.Evaluator

	// Archiver persists periodic snapshots. Optional.
	Archiver *snapshot.Archiver

	// Store serves persisted metric and alert history. Optional.
	Store *snapshot.Store
}

// Server is the gateway's HTTP front.
type Server struct {
	config  config.ServerConfig
	metrics *metrics.Collector
	gateway *gateway.Manager
	health  *health.Monitor
	alerts  *alerting.Manager
	store   *snapshot.Store

	registry    *prometheus.Registry
	metricsPath string
	jobs        *jobs
	logger      *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	running      bool
}

// New creates a server. metricsCfg supplies the scrape path and the job
// cadence.
func New(cfg config.ServerConfig, metricsCfg config.MetricsConfig, deps Deps) (*Server, error) {
	if deps.Gateway == nil {
		return nil, fmt.Errorf("server requires a gateway")
	}

	interval := metricsCfg.AggregationInterval
	if interval <= 0 {
		interval = time.Minute
	}
	j, err := newJobs(interval, deps.Metrics, deps.Evaluator, deps.Archiver)
	if err != nil {
		return nil, err
	}

	metricsPath := metricsCfg.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	return &Server{
		config:      cfg,
		metrics:     deps.Metrics,
		gateway:     deps.Gateway,
		health:      deps.Health,
		alerts:      deps.Alerts,
		store:       deps.Store,
		registry:    deps.Registry,
		metricsPath: metricsPath,
		jobs:        j,
		logger:      slog.Default().With("component", "server"),
	}, nil
}

// Start runs the HTTP server and the background jobs, blocking until the
// context is cancelled, a shutdown signal arrives, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.jobs.start()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.jobs.stop()
		return err
	}
}

// Shutdown drains in-flight requests and stops the background jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("shutting down", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("shutdown error", "error", err)
				shutdownErr = fmt.Errorf("server shutdown: %w", err)
			}
		}

		s.jobs.stop()

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()

		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/parse-dream", s.handleParseDream)

	if s.health != nil {
		mux.HandleFunc("GET /health/detailed", s.handleHealthDetailed)
		mux.HandleFunc("GET /health/provider/{name}", s.handleHealthProvider)
		mux.HandleFunc("POST /health/check", s.handleHealthCheck)
	}
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.metrics != nil {
		mux.HandleFunc("GET /monitoring/dashboard", s.handleDashboard)
		mux.HandleFunc("GET /monitoring/realtime", s.handleRealtime)
		mux.HandleFunc("GET /monitoring/performance", s.handlePerformance)
	}
	if s.alerts != nil {
		mux.HandleFunc("GET /monitoring/alerts", s.handleAlerts)
	}
	if s.store != nil {
		mux.HandleFunc("GET /monitoring/history/provider/{name}", s.handleProviderHistory)
		mux.HandleFunc("GET /monitoring/history/alerts", s.handleAlertHistory)
	}

	if s.registry != nil {
		mux.Handle("GET "+s.metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	var handler http.Handler = mux
	if s.config.RequestTimeout > 0 {
		handler = timeoutMiddleware(s.config.RequestTimeout)(handler)
	}
	handler = corsMiddleware(s.config.CORS)(handler)
	handler = requestIDMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)

	return handler
}
