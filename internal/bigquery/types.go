package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// CostRepository provides an interface for the cost export table.
type CostRepository interface {
	// EnsureTable creates the export table from the CostRow schema when it does not exist.
	EnsureTable(ctx context.Context) error

	// InsertCostRows inserts a batch of CostRow into the export table.
	InsertCostRows(ctx context.Context, rows []*CostRow) error

	// DeleteExport removes previously exported rows for a provider and period.
	DeleteExport(ctx context.Context, provider, period string) error

	// QueryExportTotals returns the exported cost per provider for a period.
	QueryExportTotals(ctx context.Context, period string) ([]*ExportTotalRow, error)
}

// CostRow represents one exported service or line-item record in BigQuery.
type CostRow struct {
	ExportID   string     `bigquery:"export_id"`
	ExportDate civil.Date `bigquery:"export_date"`
	ExportedTS time.Time  `bigquery:"exported_ts"`

	Period   string `bigquery:"period"`
	Provider string `bigquery:"provider"`
	Account  string `bigquery:"account"`
	Service  string `bigquery:"service"`

	RecordType string              `bigquery:"record_type"`
	LineItem   bigquery.NullString `bigquery:"line_item"`

	ProductApp bigquery.NullString `bigquery:"product_app"`
	Tags       []string            `bigquery:"tags"`

	Cost         float64 `bigquery:"cost"`
	SharePercent float64 `bigquery:"share_percent"`
	Rows         int64   `bigquery:"rows"`
	LineItems    int64   `bigquery:"line_items"`

	FilterProductApp bigquery.NullString    `bigquery:"filter_product_app"`
	ImportedTS       bigquery.NullTimestamp `bigquery:"imported_ts"`

	ServiceColumn    bigquery.NullString `bigquery:"service_column"`
	CostColumn       bigquery.NullString `bigquery:"cost_column"`
	DetailColumn     bigquery.NullString `bigquery:"detail_column"`
	ChargeTypeColumn bigquery.NullString `bigquery:"charge_type_column"`
	UsageDateColumn  bigquery.NullString `bigquery:"usage_date_column"`
}

// ExportTotalRow is the per-provider sum of service records in one exported period.
type ExportTotalRow struct {
	Provider string  `bigquery:"provider"`
	Cost     float64 `bigquery:"cost"`
	Rows     int64   `bigquery:"rows"`
}

// NullString wraps s, treating the empty string as NULL.
func NullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
