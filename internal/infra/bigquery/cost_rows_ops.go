package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// EnsureTableWithClient creates the export table from the CostRow schema
// when it does not exist yet.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, ref TableRef) error {
	table := client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID)

	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return fmt.Errorf("EnsureTable: reading table metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(CostRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "export_date",
		},
	}
	if err := table.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("table", ref.FullName()).
		Msg("Created cost export table")
	return nil
}

// InsertCostRowsWithClient streams a batch of CostRow into the export table.
func InsertCostRowsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, rows []*CostRow) error {
	if len(rows) == 0 {
		return nil
	}

	table := client.DatasetInProject(ref.ProjectID, ref.DatasetID).Table(ref.TableID)
	inserter := table.Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertCostRows: inserting rows: %w", err)
	}

	return nil
}

// DeleteExportWithClient removes rows previously exported for provider and period.
func DeleteExportWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, provider, period string) error {
	q := client.Query(`
		DELETE FROM ` + ref.FullName() + `
		WHERE provider = @provider
		  AND period = @period
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "provider", Value: provider},
		{Name: "period", Value: period},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("DeleteExport: run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("DeleteExport: wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("DeleteExport: job error: %w", err)
	}

	return nil
}

// QueryExportTotalsWithClient sums exported service records per provider for a period.
func QueryExportTotalsWithClient(ctx context.Context, client *bigquery.Client, ref TableRef, period string) ([]*ExportTotalRow, error) {
	q := client.Query(`
		SELECT
			provider,
			SUM(cost) AS cost,
			SUM(rows) AS rows
		FROM ` + ref.FullName() + `
		WHERE period = @period
		  AND record_type = 'service'
		GROUP BY provider
		ORDER BY provider
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "period", Value: period},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryExportTotals: query read: %w", err)
	}

	var rows []*ExportTotalRow
	for {
		var r ExportTotalRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryExportTotals: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
