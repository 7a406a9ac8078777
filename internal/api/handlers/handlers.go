package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/analytics"
	"github.com/dvloznov/demand-dashboard/internal/api/middleware"
	"github.com/dvloznov/demand-dashboard/internal/dashboard"
	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/jobs"
	"github.com/dvloznov/demand-dashboard/internal/logger"
)

// DashboardService is the query side of dashboard.Service.
type DashboardService interface {
	Query(ctx context.Context, p analytics.Params) (*dashboard.Result, error)
	Regions() []string
}

// DashboardHandler handles dashboard and region endpoints.
type DashboardHandler struct {
	svc DashboardService
	log zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc DashboardService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		svc: svc,
		log: log,
	}
}

// GetDashboard handles GET /api/dashboard?region=&start=&end=
// "municipality" is accepted as an alias of "region".
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query()
	params := analytics.Params{
		Region: query.Get("region"),
		Start:  query.Get("start"),
		End:    query.Get("end"),
	}
	if params.Region == "" {
		params.Region = query.Get("municipality")
	}

	result, err := h.svc.Query(ctx, params)
	switch {
	case errors.Is(err, dashboard.ErrFitBudgetExceeded):
		log.Warn().Err(err).Str("region", params.Region).Msg("Dashboard forecast timed out")
		middleware.WriteError(w, http.StatusGatewayTimeout, "Forecast did not finish in time")
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to write.
		return
	case err != nil:
		log.Error().Err(err).Str("region", params.Region).Msg("Failed to build dashboard")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ListRegions handles GET /api/regions
func (h *DashboardHandler) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions := h.svc.Regions()

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"regions": regions,
		"count":   len(regions),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Region: query.Get("region"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// HealthHandler reports liveness and the loaded dataset.
type HealthHandler struct {
	ds *dataset.Dataset
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ds *dataset.Dataset) *HealthHandler {
	return &HealthHandler{ds: ds}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
		"dataset": map[string]interface{}{
			"source":    h.ds.Source(),
			"rows":      h.ds.Len(),
			"regions":   len(h.ds.Regions()),
			"loaded_at": h.ds.LoadedAt().Format(time.RFC3339),
			"stats":     h.ds.Stats(),
		},
	})
}
