package handlers

import (
	"net/http"

	"github.com/dvloznov/cost-dashboard/internal/api/middleware"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/dvloznov/cost-dashboard/internal/tags"
)

// TagsHandler handles product/app and tag assignments.
type TagsHandler struct {
	svc *pipeline.Service
}

// NewTagsHandler creates a new tags handler.
func NewTagsHandler(svc *pipeline.Service) *TagsHandler {
	return &TagsHandler{svc: svc}
}

type tagEntryRequest struct {
	ProductApp string   `json:"product_app" validate:"max=256"`
	Tags       []string `json:"tags" validate:"max=64,dive,max=128"`
}

func (t tagEntryRequest) entry() domain.TagEntry {
	return domain.TagEntry{ProductApp: t.ProductApp, Tags: t.Tags}
}

type selectionKey struct {
	Service string `json:"service" validate:"required"`
	Detail  string `json:"detail"`
}

type bulkRequest struct {
	Action    string          `json:"action" validate:"required,oneof=apply clear"`
	Selection []selectionKey  `json:"selection" validate:"required,min=1,dive"`
	Entry     tagEntryRequest `json:"entry"`
}

// realProvider resolves the path provider; assignments belong to real providers.
func realProvider(w http.ResponseWriter, r *http.Request) (domain.Provider, bool) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if !provider.IsReal() {
		middleware.WriteError(w, http.StatusBadRequest, "tags are assigned per provider, not in the unified view")
		return "", false
	}
	return provider, true
}

// GetTags handles GET /api/tags/{provider}
func (h *TagsHandler) GetTags(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.svc.Tags(provider))
}

// PutServiceTag handles PUT /api/tags/{provider}/services/{service}
func (h *TagsHandler) PutServiceTag(w http.ResponseWriter, r *http.Request) {
	provider, ok := realProvider(w, r)
	if !ok {
		return
	}
	var req tagEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, middleware.StatusForError(err), err.Error())
		return
	}

	service := urlParam(r, "service")
	if err := h.svc.SetServiceTag(r.Context(), provider, service, req.entry()); err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	entry, _ := h.svc.State().Tags.Service(provider, service)
	middleware.WriteJSON(w, http.StatusOK, entry)
}

// DeleteServiceTag handles DELETE /api/tags/{provider}/services/{service}
func (h *TagsHandler) DeleteServiceTag(w http.ResponseWriter, r *http.Request) {
	provider, ok := realProvider(w, r)
	if !ok {
		return
	}
	if err := h.svc.SetServiceTag(r.Context(), provider, urlParam(r, "service"), domain.TagEntry{}); err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutDetailTag handles PUT /api/tags/{provider}/details/{service}/{detail}
func (h *TagsHandler) PutDetailTag(w http.ResponseWriter, r *http.Request) {
	provider, ok := realProvider(w, r)
	if !ok {
		return
	}
	var req tagEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, middleware.StatusForError(err), err.Error())
		return
	}

	service, detail := urlParam(r, "service"), urlParam(r, "detail")
	if err := h.svc.SetDetailTag(r.Context(), provider, service, detail, req.entry()); err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	entry, _ := h.svc.State().Tags.Detail(provider, service, detail)
	middleware.WriteJSON(w, http.StatusOK, entry)
}

// DeleteDetailTag handles DELETE /api/tags/{provider}/details/{service}/{detail}
func (h *TagsHandler) DeleteDetailTag(w http.ResponseWriter, r *http.Request) {
	provider, ok := realProvider(w, r)
	if !ok {
		return
	}
	err := h.svc.SetDetailTag(r.Context(), provider, urlParam(r, "service"), urlParam(r, "detail"), domain.TagEntry{})
	if err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkTag handles POST /api/tags/{provider}/bulk
func (h *TagsHandler) BulkTag(w http.ResponseWriter, r *http.Request) {
	provider, ok := realProvider(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, middleware.StatusForError(err), err.Error())
		return
	}

	sel := tags.NewSelection()
	for _, k := range req.Selection {
		sel.Add(tags.Key{Service: k.Service, Detail: k.Detail})
	}

	n, err := h.svc.BulkTag(r.Context(), provider, sel, req.Entry.entry(), req.Action == "clear")
	if err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"action":  req.Action,
		"updated": n,
	})
}
