// Package api wires the HTTP surface: a chi router over the report, job and
// rate handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/revenue-tracker/internal/api/handlers"
	"github.com/dvloznov/revenue-tracker/internal/api/middleware"
	"github.com/dvloznov/revenue-tracker/internal/jobs"
	"github.com/dvloznov/revenue-tracker/internal/reports"
	"github.com/dvloznov/revenue-tracker/internal/session"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Sessions         session.Store
	Jobs             jobs.JobStore
	Publisher        jobs.Publisher
	Markets          reports.Markets
	DefaultRates     map[string]float64
	DefaultSessionID string
}

// NewRouter creates the chi router with all API routes mounted.
func NewRouter(deps Deps, log zerolog.Logger) http.Handler {
	queries := handlers.NewQueriesHandler(deps.Publisher, log)
	jobsHandler := handlers.NewJobsHandler(deps.Jobs, log)
	reportsHandler := handlers.NewReportsHandler(deps.Sessions, deps.Markets, deps.DefaultRates, log)

	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Session(deps.DefaultSessionID))
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/queries", queries.CreateQuery)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)

		r.Get("/transactions", reportsHandler.ListTransactions)
		r.Get("/transactions/export.csv", reportsHandler.ExportCSV)
		r.Get("/transactions/export.xlsx", reportsHandler.ExportXLSX)

		r.Get("/organizers/{id}", reportsHandler.GetOrganizer)
		r.Get("/events/{id}", reportsHandler.GetEvent)

		r.Get("/dashboard", reportsHandler.Dashboard)
		r.Get("/top/{kind}", reportsHandler.Top)
		r.Get("/charts/{kind}", reportsHandler.Chart)

		r.Put("/rates", reportsHandler.SetRates)
		r.Delete("/rates", reportsHandler.ClearRates)

		r.Get("/glossary", handlers.Glossary)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
