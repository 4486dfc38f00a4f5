package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/export"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
)

// Sink receives the export rows of one provider and period.
type Sink interface {
	Export(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error)
}

// Exporter writes every provider's current-month rows to a sink. State is
// reloaded on each run so imports made by the API since the last run are
// included.
type Exporter struct {
	KV       persist.KV
	Sink     Sink
	Fallback bool
	Now      func() time.Time

	// LoadOptions configure the service each run loads.
	LoadOptions []pipeline.Option
}

// Run exports each provider holding data. A failing provider does not stop
// the others; the errors are joined.
func (e *Exporter) Run(ctx context.Context) ([]export.ExportResult, error) {
	log := logger.FromContext(ctx)

	svc, err := pipeline.Load(ctx, e.KV, e.LoadOptions...)
	if err != nil {
		return nil, fmt.Errorf("Run: %w", err)
	}

	period := e.Now().UTC().Format("2006-01")
	var (
		results []export.ExportResult
		errs    []error
	)
	for _, provider := range svc.Providers() {
		rows, err := svc.ExportRows(provider, period, e.Fallback, "")
		if err != nil {
			errs = append(errs, fmt.Errorf("Run: %s: %w", provider, err))
			continue
		}
		if len(rows) == 0 {
			log.Info().Str("provider", string(provider)).Str("period", period).Msg("No rows to export")
			continue
		}

		res, err := e.Sink.Export(ctx, string(provider), period, rows)
		if err != nil {
			errs = append(errs, fmt.Errorf("Run: %s: %w", provider, err))
			continue
		}
		results = append(results, res)
	}

	log.Info().
		Str("period", period).
		Int("exports", len(results)).
		Int("failed", len(errs)).
		Msg("Export run finished")
	return results, errors.Join(errs...)
}
