// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront-tools/skuscraper/internal/catalog"
	"github.com/storefront-tools/skuscraper/internal/config"
	"github.com/storefront-tools/skuscraper/internal/pipeline"
	"github.com/storefront-tools/skuscraper/internal/telemetry"
)

// Server wires HTTP handlers to the pipeline and catalog indexer. It owns the
// per-origin snapshot cache; snapshots live until explicitly invalidated or
// rebuilt.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	indexer  *catalog.Indexer
	cfg      config.Config
	logger   *zap.Logger

	mu        sync.RWMutex
	snapshots map[string]*catalog.Snapshot
}

// NewServer constructs a Server with middleware and routes.
func NewServer(p *pipeline.Pipeline, indexer *catalog.Indexer, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:  p,
		indexer:   indexer,
		cfg:       cfg,
		logger:    logger,
		snapshots: make(map[string]*catalog.Snapshot),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(10 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape", s.scrapeBatch)
		r.Post("/scrape/listing", s.scrapeListing)
		r.Route("/catalog", func(r chi.Router) {
			r.Post("/", s.buildCatalog)
			r.Delete("/", s.invalidateCatalog)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// snapshot returns the cached snapshot for an origin, or nil.
func (s *Server) snapshot(origin string) *catalog.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[origin]
}

func (s *Server) storeSnapshot(origin string, snap *catalog.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[origin] = snap
}

func (s *Server) dropSnapshot(origin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.snapshots[origin]
	delete(s.snapshots, origin)
	return ok
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
