package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/api/middleware"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/export"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
)

// DatasetsHandler serves queries, rollups and CSV exports.
type DatasetsHandler struct {
	svc       *pipeline.Service
	fallback  bool
	bomPrefix bool
}

// NewDatasetsHandler creates a new datasets handler. fallback is the default
// for queries that do not set ?fallback=.
func NewDatasetsHandler(svc *pipeline.Service, fallback, bomPrefix bool) *DatasetsHandler {
	return &DatasetsHandler{
		svc:       svc,
		fallback:  fallback,
		bomPrefix: bomPrefix,
	}
}

// ListProviders handles GET /api/providers
func (h *DatasetsHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.svc.Providers()
	if providers == nil {
		providers = []domain.Provider{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
		"count":     len(providers),
	})
}

// GetDataset handles GET /api/datasets/{provider}
func (h *DatasetsHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, fallback, err := periodQuery(r, h.fallback)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := h.svc.Dataset(provider, period, fallback)
	if err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to query dataset")
		return
	}
	if ds == nil {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("no %s data for %s", provider.Label(), period))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ds)
}

// ListMonths handles GET /api/datasets/{provider}/months
func (h *DatasetsHandler) ListMonths(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	months := h.svc.Months(provider)
	if months == nil {
		months = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"months":   months,
	})
}

// ClearDataset handles DELETE /api/datasets/{provider}
func (h *DatasetsHandler) ClearDataset(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Clear(r.Context(), provider); err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to save state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRollup handles GET /api/rollup/{provider}
func (h *DatasetsHandler) GetRollup(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, fallback, err := periodQuery(r, h.fallback)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	groupBy, err := rollup.ParseGroupBy(r.URL.Query().Get("group_by"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := rollup.Query{FilterProductApp: r.URL.Query().Get("filter"), GroupBy: groupBy}
	res, ds, err := h.svc.Rollup(provider, period, fallback, q)
	if err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to build rollup")
		return
	}
	if ds == nil {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("no %s data for %s", provider.Label(), period))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period": period,
		"rollup": res,
	})
}

// ExportCSV handles GET /api/export/{provider}.csv
func (h *DatasetsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, fallback, err := periodQuery(r, h.fallback)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ds, err := h.svc.Dataset(provider, period, fallback); err == nil && ds == nil {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("no %s data for %s", provider.Label(), period))
		return
	}
	rows, err := h.svc.ExportRows(provider, period, fallback, r.URL.Query().Get("filter"))
	if err != nil {
		middleware.WriteErrorFor(w, r, err, "Failed to build export")
		return
	}

	filename := fmt.Sprintf("%s-%s.csv", provider, strings.ReplaceAll(period, ":", "-"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if err := export.WriteCSV(w, rows, export.WriteOptions{BOMPrefix: h.bomPrefix}); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("Failed to write CSV export")
	}
}
