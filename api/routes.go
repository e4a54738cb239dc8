package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/SamuelRCrider/dqe-go/api/handlers"
)

// Version is reported by GET /health
var Version = "dev"

// Deps are the collaborators the routes dispatch to
type Deps struct {
	Engine  handlers.Engine
	Issues  handlers.IssueReader
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter builds the HTTP router
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	InitRoute(r, deps)
	return r
}

// InitRoute installs middleware and every route on r
func InitRoute(r *chi.Mux, deps Deps) {
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(Version)
	r.Get("/health", health.Health)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	validation := handlers.NewValidationHandler(deps.Engine, deps.Issues, deps.Logger)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/records/validate", validation.ValidateRecord)
		r.Post("/batches", validation.RunBatch)
		r.Get("/jobs/{jobID}/issues", validation.ListIssues)
	})
}
