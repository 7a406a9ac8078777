// Package api wires the HTTP surface of the dashboard: routes, handlers
// and the middleware chain.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/api/handlers"
	"github.com/dvloznov/demand-dashboard/internal/api/middleware"
	"github.com/dvloznov/demand-dashboard/internal/config"
	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/jobs"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Dashboard handlers.DashboardService
	Jobs      jobs.JobStore
	Dataset   *dataset.Dataset
	Config    config.APIConfig
	Log       zerolog.Logger
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	dashboardHandler := handlers.NewDashboardHandler(d.Dashboard, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)
	healthHandler := handlers.NewHealthHandler(d.Dataset)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recovery(d.Log),
		middleware.Logger(d.Log),
		middleware.Metrics,
		middleware.CORS(d.Config.CORSOrigins),
	)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.Config.RateLimitRequests, d.Config.RateLimitWindow))

		r.Get("/dashboard", dashboardHandler.GetDashboard)
		r.Get("/regions", dashboardHandler.ListRegions)
		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
