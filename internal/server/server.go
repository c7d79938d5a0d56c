// Package server provides the HTTP API server for wlanscan.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/HerbHall/wlanscan/internal/version"
	"github.com/HerbHall/wlanscan/pkg/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PluginSource provides the server with plugin metadata and routes.
// Defined here (consumer-side) rather than importing the concrete registry.
type PluginSource interface {
	AllRoutes() map[string][]plugin.Route
	All() []plugin.Plugin
}

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// Server is the wlanscan HTTP server.
type Server struct {
	httpServer *http.Server
	plugins    PluginSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// SimpleRouteRegistrar can register routes without middleware.
type SimpleRouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// operationalPaths are polled by supervisors and scrapers; they are not
// logged or rate limited.
var operationalPaths = []string{"/healthz", "/readyz", "/metrics"}

// ScanStreamPath is the websocket route of the live scan event stream.
const ScanStreamPath = "/api/v1/ws/scan"

// unlimitedPaths bypass rate limiting. The scan stream is one long-lived
// connection per client and is still logged when it closes.
var unlimitedPaths = append([]string{ScanStreamPath}, operationalPaths...)

// New creates a new Server with middleware and routes.
// Additional route registrars, such as the live scan stream, are mounted
// after the core routes and before plugin routes.
func New(cfg Config, plugins PluginSource, logger *zap.Logger, ready ReadinessChecker, extraRoutes ...SimpleRouteRegistrar) *Server {
	mux := http.NewServeMux()

	s := &Server{
		plugins: plugins,
		logger:  logger,
		mux:     mux,
		ready:   ready,
	}

	s.registerRoutes()
	for _, r := range extraRoutes {
		r.RegisterRoutes(mux)
	}
	s.mountPluginRoutes()

	// Middleware chain: outermost listed first.
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, operationalPaths),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
	}
	if cfg.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, unlimitedPaths))
	}
	if cfg.ReadOnly {
		middlewares = append(middlewares, ReadOnlyMiddleware)
		logger.Info("API is read-only")
	}

	handler := Chain(mux, middlewares...)

	s.httpServer = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the scan stream is a long-lived websocket.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// registerRoutes sets up all core routes.
func (s *Server) registerRoutes() {
	// Unversioned operational endpoints.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Versioned API endpoints.
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
}

// mountPluginRoutes registers all plugin routes under /api/v1/{plugin}/.
func (s *Server) mountPluginRoutes() {
	allRoutes := s.plugins.AllRoutes()
	for pluginName, routes := range allRoutes {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is a liveness probe -- returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz checks readiness -- returns 200 if the server can serve traffic.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string            `json:"status" example:"ok"`
	Service string            `json:"service" example:"wlanscan"`
	Version map[string]string `json:"version"`
}

// PluginResponse describes a registered plugin.
type PluginResponse struct {
	Name        string `json:"name" example:"scan"`
	Version     string `json:"version" example:"0.1.0"`
	Description string `json:"description" example:"WLAN scan orchestration"`
}

// handleHealth returns detailed health information (versioned API endpoint).
//
//	@Summary		Health check
//	@Description	Returns service health status with version information.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  "ok",
		Service: "wlanscan",
		Version: version.Map(),
	})
}

// handlePlugins returns the list of registered plugins.
//
//	@Summary		List plugins
//	@Description	Returns all registered plugins with their metadata.
//	@Tags			system
//	@Produce		json
//	@Success		200	{array}	PluginResponse
//	@Router			/plugins [get]
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.plugins.All()
	info := make([]PluginResponse, 0, len(plugins))
	for _, p := range plugins {
		pi := p.Info()
		info = append(info, PluginResponse{
			Name:        pi.Name,
			Version:     pi.Version,
			Description: pi.Description,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
