package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/revenue-tracker/internal/api/middleware"
	"github.com/dvloznov/revenue-tracker/internal/jobs"
	"github.com/dvloznov/revenue-tracker/internal/source"
)

// QueriesHandler enqueues consolidations.
type QueriesHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(publisher jobs.Publisher, log zerolog.Logger) *QueriesHandler {
	return &QueriesHandler{
		publisher: publisher,
		log:       log,
	}
}

// CreateQuery handles POST /api/queries
func (h *QueriesHandler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		middleware.WriteError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	window, err := source.ParseWindow(req.StartDate, req.EndDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)
	job := &jobs.ConsolidateJob{
		SessionID: sessionID,
		Window:    window,
	}
	if err := h.publisher.PublishConsolidate(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue consolidation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue consolidation job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("session_id", sessionID).
		Str("start_date", window.Start.String()).
		Str("end_date", window.End.String()).
		Msg("Consolidation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":     job.JobID,
		"session_id": sessionID,
		"status":     string(job.Status),
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
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs. Jobs are listed for the caller's session
// unless session_id is given.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		SessionID: query.Get("session_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if filter.SessionID == "" {
		filter.SessionID = middleware.GetSessionID(ctx)
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
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
