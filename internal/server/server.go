// Package server exposes the sync trigger and the catalog read API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/foodguide/stallsync/internal/model"
	"github.com/foodguide/stallsync/internal/monitoring"
	"github.com/foodguide/stallsync/internal/store"
	"github.com/foodguide/stallsync/internal/syncer"
	"github.com/foodguide/stallsync/pkg/geocode"
)

// Runner starts a sync run.
type Runner interface {
	Run(ctx context.Context, req syncer.Request) (*model.SyncRunSummary, error)
}

// Catalog is the read side of the store used by the API.
type Catalog interface {
	ListStalls(ctx context.Context, filter store.StallFilter) ([]model.StallRecord, error)
	CountUnresolved(ctx context.Context) (int, error)
	CountUngeocoded(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Deps wires the server. Geocoder may be nil.
type Deps struct {
	Runner         Runner
	Catalog        Catalog
	Geocoder       geocode.Client
	AdminToken     string
	AllowedOrigins []string
}

// Server holds the HTTP handlers.
type Server struct {
	runner     Runner
	catalog    Catalog
	collector  *monitoring.Collector
	geocoder   geocode.Client
	adminToken string
	origins    []string
}

// New creates a Server.
func New(d Deps) *Server {
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		runner:     d.Runner,
		catalog:    d.Catalog,
		collector:  monitoring.NewCollector(d.Catalog),
		geocoder:   d.Geocoder,
		adminToken: d.AdminToken,
		origins:    origins,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/sync-trigger", s.handleSyncTrigger)
	r.Post("/sync-trigger", s.handleSyncTrigger)
	r.Get("/geocode/search", s.handleGeocode)
	r.Get("/stalls", s.handleStalls)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Status: "error", Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.catalog.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "catalog counts unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"catalog": snap,
	})
}
