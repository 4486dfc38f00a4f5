package handlers

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/api/middleware"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/jobs"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/google/uuid"
)

// ImportsHandler handles import uploads.
type ImportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	autoRoute bool
}

// NewImportsHandler creates a new imports handler. autoRoute is the default
// for requests that do not set auto_route.
func NewImportsHandler(publisher jobs.Publisher, store jobs.JobStore, autoRoute bool) *ImportsHandler {
	return &ImportsHandler{
		publisher: publisher,
		store:     store,
		autoRoute: autoRoute,
	}
}

type importFile struct {
	Name     string `json:"name" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Encoding string `json:"encoding" validate:"omitempty,oneof=text base64"`
}

type importRequest struct {
	Provider  string       `json:"provider" validate:"required,oneof=aws azure gcp rackspace"`
	AutoRoute *bool        `json:"auto_route"`
	Account   string       `json:"account" validate:"max=256"`
	Files     []importFile `json:"files" validate:"required,min=1,dive"`
}

// CreateImport handles POST /api/imports
func (h *ImportsHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, middleware.StatusForError(err), err.Error())
		return
	}

	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ImportJob{
		JobID:     uuid.New().String(),
		Provider:  provider,
		AutoRoute: h.autoRoute,
		Account:   req.Account,
		Status:    jobs.JobStatusPending,
		CreatedAt: time.Now(),
	}
	if req.AutoRoute != nil {
		job.AutoRoute = *req.AutoRoute
	}
	for _, f := range req.Files {
		content := []byte(f.Content)
		if f.Encoding == "base64" {
			content, err = base64.StdEncoding.DecodeString(f.Content)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, "invalid base64 content for "+f.Name)
				return
			}
		}
		job.FileNames = append(job.FileNames, f.Name)
		job.Files = append(job.Files, ingest.File{Name: f.Name, Content: content})
	}

	jobID := job.JobID
	if err := h.publisher.PublishImport(ctx, job); err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to enqueue import job")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", jobID).
		Str("provider", string(provider)).
		Int("files", len(req.Files)).
		Msg("Import job enqueued")

	// The queue owns job now; answer from the store copy.
	stored, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": string(jobs.JobStatusPending),
		})
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, stored)
}
