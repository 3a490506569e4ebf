// Package api assembles the HTTP surface: routing, middleware, and the
// request handlers for transforms, catalog lookups, and pass predictions.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/preslaff/satellite-mission-control-simulation-system/internal/auth"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/catalog"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/health"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/metrics"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/sgp4"
	"github.com/preslaff/satellite-mission-control-simulation-system/internal/stream"
)

// Deps are the services the HTTP surface exposes.
type Deps struct {
	Catalog *catalog.Cache
	Props   *sgp4.Cache
	Stream  *stream.Handler
	Ready   health.Checker
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger, authCfg auth.Config) *Server {
	s := &Server{deps: deps, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.Ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/v1/transform", s.handleTransform)
	mux.HandleFunc("GET /api/v1/frames", s.handleFrames)
	mux.HandleFunc("GET /api/v1/groups", s.handleGroups)
	mux.HandleFunc("GET /api/v1/satellites", s.handleSatellites)
	mux.HandleFunc("GET /api/v1/satellites/{id}", s.handleSatellite)
	mux.HandleFunc("GET /api/v1/satellites/{id}/orbit", s.handleOrbit)
	mux.HandleFunc("GET /api/v1/satellites/{id}/azel", s.handleAzEl)
	mux.HandleFunc("GET /api/v1/passes", s.handlePasses)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", deps.Stream.HandlePositions)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the middleware chain.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
