// Package export flattens rollup results into CSV and BigQuery records.
package export

import (
	"strings"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
)

// Record types.
const (
	RecordService  = "service"
	RecordLineItem = "line_item"
)

// Row is one exported service or line-item record.
type Row struct {
	Provider         string
	Account          string
	Service          string
	ProductApp       string
	Tags             []string
	Cost             float64
	SharePercent     float64
	Rows             int
	LineItems        int
	RecordType       string
	LineItem         string
	ImportedAt       time.Time
	FilterProductApp string
	Columns          domain.Columns
}

// BuildRows emits one row per filtered service followed by one row per
// filtered line item of that service. Line items carry their own
// assignment when present, otherwise the service's.
func BuildRows(ds *domain.Dataset, res rollup.Result, lookup rollup.TagLookup) []Row {
	if ds == nil {
		return nil
	}

	var rows []Row
	for _, sv := range res.Services {
		base := Row{
			Provider:         sv.Provider.Label(),
			Account:          sv.Account,
			Service:          sv.Name,
			ImportedAt:       ds.ImportedAt,
			FilterProductApp: res.Query.FilterProductApp,
			Columns:          ds.Columns,
		}

		svcRow := base
		svcRow.RecordType = RecordService
		svcRow.ProductApp = sv.Tags.ProductApp
		svcRow.Tags = sv.Tags.Tags
		svcRow.Cost = sv.Cost
		svcRow.SharePercent = sv.Share
		svcRow.Rows = sv.RowCount
		svcRow.LineItems = len(sv.Details)
		rows = append(rows, svcRow)

		for _, d := range sv.Details {
			entry := sv.Tags
			if de, ok := lookup.Detail(sv.Provider, sv.Name, d.Name); ok {
				entry = de
			}
			itemRow := base
			itemRow.RecordType = RecordLineItem
			itemRow.LineItem = d.Name
			itemRow.ProductApp = entry.ProductApp
			itemRow.Tags = entry.Tags
			itemRow.Cost = d.Cost
			if res.TotalCost != 0 {
				itemRow.SharePercent = d.Cost / res.TotalCost * 100
			}
			itemRow.Rows = d.RowCount
			itemRow.LineItems = 1
			rows = append(rows, itemRow)
		}
	}
	return rows
}

// JoinTags renders tags the way the CSV export does.
func JoinTags(tags []string) string {
	return strings.Join(tags, "; ")
}
