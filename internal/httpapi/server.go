// Package httpapi serves the rankings, charts, and admin endpoints.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/parkpulse/parkpulse/internal/config"
	"github.com/parkpulse/parkpulse/internal/importer"
	"github.com/parkpulse/parkpulse/internal/persistence"
	"github.com/parkpulse/parkpulse/internal/query"
	"github.com/parkpulse/parkpulse/internal/scheduler"
)

// Server is the HTTP server for the warehouse API.
type Server struct {
	router   *mux.Router
	server   *http.Server
	config   config.HTTPConfig
	query    *query.Service
	repo     *persistence.Repository
	importer *importer.Importer
	sched    *scheduler.Scheduler
	hub      *Hub
	metrics  *Metrics
}

// NewServer creates the HTTP server. sched and imp may be nil when the
// process runs without those subsystems; their endpoints then 404.
func NewServer(cfg config.HTTPConfig, q *query.Service, repo *persistence.Repository, imp *importer.Importer, sched *scheduler.Scheduler, hub *Hub) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", cfg.Port, err)
	}
	listener.Close()

	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		query:    q,
		repo:     repo,
		importer: imp,
		sched:    sched,
		hub:      hub,
		metrics:  NewMetrics(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.metrics.middleware)
	s.router.Use(s.corsMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	if s.hub != nil {
		s.router.HandleFunc("/ws/live", s.hub.handleWS)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/parks/rankings", s.handleParkRankings).Methods("GET")
	api.HandleFunc("/rides/waittimes", s.handleRideWaitTimes).Methods("GET")
	api.HandleFunc("/parks/{id:[0-9]+}/chart", s.handleParkChart).Methods("GET")
	api.HandleFunc("/parks/{id:[0-9]+}/heatmap", s.handleParkHeatmap).Methods("GET")
	api.HandleFunc("/rides/{id:[0-9]+}/chart", s.handleRideChart).Methods("GET")

	if s.importer != nil {
		api.HandleFunc("/imports", s.handleCreateImport).Methods("POST")
		api.HandleFunc("/imports", s.handleListImports).Methods("GET")
		api.HandleFunc("/imports/{id:[0-9]+}", s.handleGetImport).Methods("GET")
		api.HandleFunc("/imports/{id:[0-9]+}/pause", s.handlePauseImport).Methods("POST")
		api.HandleFunc("/imports/{id:[0-9]+}/resume", s.handleResumeImport).Methods("POST")
		api.HandleFunc("/imports/{id:[0-9]+}/cancel", s.handleCancelImport).Methods("POST")
	}

	api.HandleFunc("/admin/storage", s.handleStorage).Methods("GET")
	api.HandleFunc("/admin/quality", s.handleQuality).Methods("GET")
	if s.sched != nil {
		api.HandleFunc("/admin/jobs", s.handleJobs).Methods("GET")
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		requestID, _ := r.Context().Value(requestIDKey{}).(string)
		log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Start runs the server until it fails or is shut down.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
