// Package api serves the fleet operations over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/fleet"
	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/model"
)

// Service is what the handlers call into.
type Service interface {
	Import(ctx context.Context, scope model.Scope, req importer.Request) (model.ImportSummary, error)
	Search(ctx context.Context, scope model.Scope, q model.SearchQuery) ([]model.DisplayRecord, error)
	Geocode(ctx context.Context, q model.SearchQuery) ([]model.DisplayRecord, error)
	BulkDelete(ctx context.Context, scope model.Scope, kind model.EntityKind, ids []string) (*fleet.DeleteResult, error)
	Export(ctx context.Context, scope model.Scope, kind model.EntityKind, format string, ids []string) (*fleet.ExportFile, error)
	VehicleStatuses(ctx context.Context, scope model.Scope) ([]string, error)
	RegisterFile(ctx context.Context, meta model.FileMeta) (*model.FileMeta, error)
}

var _ Service = (*fleet.Service)(nil)

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	// DefaultLimit applies to searches that send no limit.
	DefaultLimit int
}

// Server routes HTTP requests to the fleet service.
type Server struct {
	svc    Service
	opts   Options
	router *chi.Mux
}

// NewServer creates a Server with its routes registered.
func NewServer(svc Service, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{svc: svc, opts: opts, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "fleetops.api")
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderCompany},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/places/geocode", s.handleGeocode)

		r.Group(func(r chi.Router) {
			r.Use(requireScope)

			r.Get("/places/search", s.handleSearch)
			r.Get("/vehicles/statuses", s.handleVehicleStatuses)
			r.Post("/files", s.handleRegisterFile)

			r.Route("/{kind}", func(r chi.Router) {
				r.Use(entityKind)
				r.Post("/import", s.handleImport)
				r.Get("/export", s.handleExport)
				r.Delete("/bulk-delete", s.handleBulkDelete)
				r.Post("/bulk-delete", s.handleBulkDelete)
			})
		})
	})
}

// requestLogger logs one line per request with zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
