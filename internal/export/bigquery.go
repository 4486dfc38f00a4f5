package export

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	bq "github.com/dvloznov/cost-dashboard/internal/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/google/uuid"
)

// BigQueryExport replaces a provider's rows for one period in the cost table.
type BigQueryExport struct {
	repo bq.CostRepository
	now  func() time.Time
}

// NewBigQueryExport creates an exporter writing through repo.
func NewBigQueryExport(repo bq.CostRepository) *BigQueryExport {
	return &BigQueryExport{repo: repo, now: time.Now}
}

// ExportResult describes one completed export.
type ExportResult struct {
	ExportID string `json:"export_id"`
	Provider string `json:"provider"`
	Period   string `json:"period"`
	Rows     int    `json:"rows"`
}

// Export ensures the table exists, deletes rows from an earlier export of
// the same provider and period, then inserts rows.
func (e *BigQueryExport) Export(ctx context.Context, provider, period string, rows []Row) (ExportResult, error) {
	log := logger.FromContext(ctx)

	res := ExportResult{
		ExportID: uuid.NewString(),
		Provider: provider,
		Period:   period,
		Rows:     len(rows),
	}

	if err := e.repo.EnsureTable(ctx); err != nil {
		return res, fmt.Errorf("Export: ensuring table: %w", err)
	}
	if err := e.repo.DeleteExport(ctx, provider, period); err != nil {
		return res, fmt.Errorf("Export: deleting previous export: %w", err)
	}

	costRows := ToCostRows(rows, res.ExportID, period, e.now())
	if err := e.repo.InsertCostRows(ctx, costRows); err != nil {
		return res, fmt.Errorf("Export: inserting rows: %w", err)
	}

	log.Info().
		Str("export_id", res.ExportID).
		Str("provider", provider).
		Str("period", period).
		Int("rows", len(costRows)).
		Msg("Exported cost rows to BigQuery")
	return res, nil
}

// ToCostRows converts export rows to BigQuery records stamped with exportID.
func ToCostRows(rows []Row, exportID, period string, now time.Time) []*bq.CostRow {
	out := make([]*bq.CostRow, 0, len(rows))
	date := civil.DateOf(now)
	for _, r := range rows {
		cr := &bq.CostRow{
			ExportID:         exportID,
			ExportDate:       date,
			ExportedTS:       now,
			Period:           period,
			Provider:         r.Provider,
			Account:          r.Account,
			Service:          r.Service,
			RecordType:       r.RecordType,
			LineItem:         bq.NullString(r.LineItem),
			ProductApp:       bq.NullString(r.ProductApp),
			Tags:             r.Tags,
			Cost:             r.Cost,
			SharePercent:     r.SharePercent,
			Rows:             int64(r.Rows),
			LineItems:        int64(r.LineItems),
			FilterProductApp: bq.NullString(r.FilterProductApp),
			ServiceColumn:    bq.NullString(r.Columns.Service),
			CostColumn:       bq.NullString(r.Columns.Cost),
			DetailColumn:     bq.NullString(r.Columns.Detail),
			ChargeTypeColumn: bq.NullString(r.Columns.ChargeType),
			UsageDateColumn:  bq.NullString(r.Columns.UsageDate),
		}
		if !r.ImportedAt.IsZero() {
			cr.ImportedTS = bigquery.NullTimestamp{Timestamp: r.ImportedAt, Valid: true}
		}
		out = append(out, cr)
	}
	return out
}
