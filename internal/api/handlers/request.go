package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/dvloznov/cost-dashboard/internal/api/middleware"
	"github.com/dvloznov/cost-dashboard/internal/buckets"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeJSON reads the request body into v and validates its struct tags.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: invalid request body: %w", middleware.ErrBadRequest, err)
	}
	return validate.Struct(v)
}

// urlParam returns an unescaped chi path parameter.
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func providerParam(r *http.Request) (domain.Provider, error) {
	return domain.ParseProvider(urlParam(r, "provider"))
}

// periodQuery reads ?period= and ?fallback=. fallback accepts yes/no,
// on/off, 1/0 and true/false; a missing or unrecognised value yields def.
func periodQuery(r *http.Request, def bool) (string, bool, error) {
	q := r.URL.Query()
	period := q.Get("period")
	if _, err := buckets.ParsePeriod(period); err != nil {
		return "", false, err
	}
	fallback := def
	if b := ingest.ParseBool(q.Get("fallback")); b.IsSet() {
		fallback = b.True()
	}
	if period == "" {
		period = buckets.PeriodAllKey
	}
	return period, fallback, nil
}
