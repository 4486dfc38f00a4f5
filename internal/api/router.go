// Package api wires the HTTP handlers into a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/api/handlers"
	"github.com/dvloznov/cost-dashboard/internal/api/middleware"
	"github.com/dvloznov/cost-dashboard/internal/jobs"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Service   *pipeline.Service
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Metrics   http.Handler
	Log       zerolog.Logger

	AllowedOrigin  string
	MaxUploadBytes int64
	AutoRoute      bool
	FallbackToAll  bool
	BOMPrefix      bool
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(d Deps) http.Handler {
	imports := handlers.NewImportsHandler(d.Publisher, d.Jobs, d.AutoRoute)
	jobsHandler := handlers.NewJobsHandler(d.Jobs)
	datasets := handlers.NewDatasetsHandler(d.Service, d.FallbackToAll, d.BOMPrefix)
	tagsHandler := handlers.NewTagsHandler(d.Service)

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS(d.AllowedOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.MaxBytes(d.MaxUploadBytes)).Post("/imports", imports.CreateImport)

		r.Get("/jobs", jobsHandler.ListJobs)
		r.Get("/jobs/{id}", jobsHandler.GetJob)

		r.Get("/providers", datasets.ListProviders)
		r.Get("/datasets/{provider}", datasets.GetDataset)
		r.Get("/datasets/{provider}/months", datasets.ListMonths)
		r.Delete("/datasets/{provider}", datasets.ClearDataset)
		r.Get("/rollup/{provider}", datasets.GetRollup)
		r.Get("/export/{provider}.csv", datasets.ExportCSV)

		r.Route("/tags/{provider}", func(r chi.Router) {
			r.Get("/", tagsHandler.GetTags)
			r.Put("/services/{service}", tagsHandler.PutServiceTag)
			r.Delete("/services/{service}", tagsHandler.DeleteServiceTag)
			r.Put("/details/{service}/{detail}", tagsHandler.PutDetailTag)
			r.Delete("/details/{service}/{detail}", tagsHandler.DeleteDetailTag)
			r.Post("/bulk", tagsHandler.BulkTag)
		})
	})

	return r
}
