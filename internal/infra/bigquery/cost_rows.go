package bigquery

import (
	bq "github.com/dvloznov/cost-dashboard/internal/bigquery"
)

// CostRow and ExportTotalRow are re-exported so callers only import this package.
type CostRow = bq.CostRow
type ExportTotalRow = bq.ExportTotalRow

// TableRef names the export table.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// FullName returns the backtick-quoted table name for SQL.
func (t TableRef) FullName() string {
	return "`" + t.ProjectID + "." + t.DatasetID + "." + t.TableID + "`"
}
