package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	bq "github.com/dvloznov/cost-dashboard/internal/bigquery"
)

// Re-export interface from shared package
type CostRepository = bq.CostRepository

// BigQueryCostRepository is the concrete implementation of CostRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryCostRepository struct {
	client *bigquery.Client
	ref    TableRef
}

var _ CostRepository = (*BigQueryCostRepository)(nil)

// NewBigQueryCostRepository creates a repository writing to ref.
func NewBigQueryCostRepository(ctx context.Context, ref TableRef) (*BigQueryCostRepository, error) {
	client, err := bigquery.NewClient(ctx, ref.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryCostRepository: creating client: %w", err)
	}
	return &BigQueryCostRepository{
		client: client,
		ref:    ref,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryCostRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureTable delegates to EnsureTableWithClient with the shared client.
func (r *BigQueryCostRepository) EnsureTable(ctx context.Context) error {
	return EnsureTableWithClient(ctx, r.client, r.ref)
}

// InsertCostRows delegates to InsertCostRowsWithClient with the shared client.
func (r *BigQueryCostRepository) InsertCostRows(ctx context.Context, rows []*CostRow) error {
	return InsertCostRowsWithClient(ctx, r.client, r.ref, rows)
}

// DeleteExport delegates to DeleteExportWithClient with the shared client.
func (r *BigQueryCostRepository) DeleteExport(ctx context.Context, provider, period string) error {
	return DeleteExportWithClient(ctx, r.client, r.ref, provider, period)
}

// QueryExportTotals delegates to QueryExportTotalsWithClient with the shared client.
func (r *BigQueryCostRepository) QueryExportTotals(ctx context.Context, period string) ([]*ExportTotalRow, error) {
	return QueryExportTotalsWithClient(ctx, r.client, r.ref, period)
}
