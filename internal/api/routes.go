// Package api wires the chi router: public health, metrics and token routes, and
// the JWT protected /api/v1 surface.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/toolscope/internal/api/middleware"
	domainaudit "github.com/matiasleandrokruk/toolscope/internal/domain/audit"
	domainauth "github.com/matiasleandrokruk/toolscope/internal/domain/auth"
	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/infra/metrics"
)

// Deps are the services the router needs. Registry and Sync must share
// Classifier. Metrics may be nil, in which case /metrics is not mounted.
// Sources limits what a nil Resolver will fetch.
type Deps struct {
	DB         *sql.DB
	Classifier *tool.Classifier
	Registry   *tool.ToolRegistry
	Sync       *tool.SyncService
	Metrics    *metrics.Collector
	Resolver   handlers.SourceResolver
	Sources    SourcePolicy
	Logger     zerolog.Logger
}

// NewRouter creates the chi router with every route registered.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	auditService := domainaudit.NewAuditService(deps.DB)
	if deps.Resolver == nil {
		deps.Resolver = NewSourceResolver(deps.Sources, deps.Logger)
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	authHandler := handlers.NewAuthHandler(domainauth.NewAuthServiceWithAudit(deps.DB, auditService))
	r.Post("/auth/token", authHandler.Token)

	// ===== PROTECTED ROUTES =====

	toolsHandler := handlers.NewToolsHandler(deps.Classifier, deps.Registry, deps.Logger)
	catalogHandler := handlers.NewCatalogHandler(deps.Registry)
	sourcesHandler := handlers.NewSourcesHandler(deps.Registry, deps.Sync, deps.Resolver)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)
		r.Use(apmiddleware.AuditMiddleware(auditService))

		r.Route("/tools", func(r chi.Router) {
			r.Post("/filter", toolsHandler.Filter)     // POST /api/v1/tools/filter
			r.Post("/context", toolsHandler.Context)   // POST /api/v1/tools/context
			r.Post("/classify", toolsHandler.Classify) // POST /api/v1/tools/classify
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Route("/tools", func(r chi.Router) {
				r.Get("/", catalogHandler.ListTools)
				r.Post("/", catalogHandler.CreateTool)
				r.Get("/search", catalogHandler.SearchTools)
				r.Get("/context", catalogHandler.Context)
				r.Get("/{id}", catalogHandler.GetTool)
				r.Delete("/{id}", catalogHandler.DeleteTool)
			})
			r.Post("/reclassify", catalogHandler.Reclassify)
			r.Get("/runs", catalogHandler.ListRuns)

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", sourcesHandler.ListSources)
				r.Post("/", sourcesHandler.CreateSource)
				r.Delete("/{id}", sourcesHandler.DeleteSource)
				r.Post("/{id}/sync", sourcesHandler.SyncSource)
			})
		})
	})

	return r
}
