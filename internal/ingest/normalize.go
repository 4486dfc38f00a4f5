package ingest

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

const (
	// DefaultServiceName labels rows without a service value.
	DefaultServiceName = "Uncategorized"
	// DefaultDetailName labels rows without a line-item value.
	DefaultDetailName = "Line item"
	// MatrixDetailName is the synthetic detail of a pivot-export service.
	MatrixDetailName = "Service total"
	// defaultAccountName labels a file when nothing better is known.
	defaultAccountName = "default"
)

// NormalizeInput is one tokenized file ready to be aggregated.
type NormalizeInput struct {
	Provider   domain.Provider
	FileName   string
	Account    string
	Rows       [][]string
	Matrix     bool
	ImportedAt time.Time
}

// Normalized is the aggregate of one file: an all-time dataset plus one
// dataset per month bucket the file contributes to.
type Normalized struct {
	All     *domain.Dataset
	Months  map[string]*domain.Dataset
	Skipped int
}

// MonthKeys returns the month buckets in ascending order.
func (n *Normalized) MonthKeys() []string {
	keys := make([]string, 0, len(n.Months))
	for k := range n.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Normalize aggregates the rows of one file into datasets. Rows whose cost
// does not parse are skipped and counted; they never fail the file.
func Normalize(in NormalizeInput) (*Normalized, error) {
	rows := nonBlankRows(in.Rows)
	if len(rows) < 2 {
		return nil, &StructuralParseError{Reason: "need a header row and at least one data row"}
	}
	if in.Matrix {
		return normalizeMatrix(in, rows)
	}

	schema, ok := SchemaFor(in.Provider)
	if !ok {
		return nil, &StructuralParseError{Reason: "no schema for provider " + string(in.Provider)}
	}

	headers := rows[0]
	idx := ResolveColumns(schema, headers)
	if idx.Cost < 0 {
		return nil, &StructuralParseError{Reason: "no cost column found"}
	}

	account := resolveAccount(in, rows[1:], idx.Account)
	all := newTree()
	months := make(map[string]*tree)
	skipped := 0

	for _, row := range rows[1:] {
		amount := ParseAmount(cell(row, idx.Cost))
		if !amount.Valid {
			skipped++
			continue
		}

		service := cellOr(row, idx.Service, DefaultServiceName)
		detail := cellOr(row, idx.Detail, DefaultDetailName)
		chargeType := cell(row, idx.ChargeType)

		month := domain.UnknownMonth
		var usage *time.Time
		if t, ok := ParseUsageDate(cell(row, idx.UsageDate)); ok {
			usage = &t
			month = MonthKey(t)
		}

		all.add(service, detail, chargeType, amount.Value, usage)
		mt, ok := months[month]
		if !ok {
			mt = newTree()
			months[month] = mt
		}
		mt.add(service, detail, chargeType, amount.Value, usage)
	}

	meta := datasetMeta{
		provider:   in.Provider,
		account:    account,
		fileName:   in.FileName,
		importedAt: in.ImportedAt,
		columns:    idx.Columns(headers),
	}

	out := &Normalized{
		All:     all.dataset(meta, ""),
		Months:  make(map[string]*domain.Dataset, len(months)),
		Skipped: skipped,
	}
	for key, mt := range months {
		out.Months[key] = mt.dataset(meta, key)
	}
	return out, nil
}

// normalizeMatrix reads an AWS "Service View" pivot: every column between the
// label column and the total column is one service.
func normalizeMatrix(in NormalizeInput, rows [][]string) (*Normalized, error) {
	headers := rows[0]
	norm := normalizeHeaders(headers)
	totalCol := matrixTotalColumn(norm)
	if totalCol < 0 {
		return nil, &StructuralParseError{Reason: "no total costs column found"}
	}

	var totalsRow []string
	var dated [][]string
	var dates []time.Time
	for _, row := range rows[1:] {
		label := strings.TrimSpace(cell(row, 0))
		if strings.EqualFold(label, "service total") {
			totalsRow = row
			continue
		}
		if t, ok := ParseUsageDate(label); ok {
			dated = append(dated, row)
			dates = append(dates, t)
		}
	}

	all := newTree()
	months := make(map[string]*tree)
	skipped := 0

	for col := 1; col < len(headers); col++ {
		if col == totalCol {
			continue
		}
		service := matrixServiceName(headers[col])

		if len(dated) == 0 {
			if totalsRow == nil {
				break
			}
			amount := ParseAmount(cell(totalsRow, col))
			if !amount.Valid {
				skipped++
				continue
			}
			all.add(service, MatrixDetailName, "", amount.Value, nil)
			mt, ok := months[domain.UnknownMonth]
			if !ok {
				mt = newTree()
				months[domain.UnknownMonth] = mt
			}
			mt.add(service, MatrixDetailName, "", amount.Value, nil)
			continue
		}

		for i, row := range dated {
			amount := ParseAmount(cell(row, col))
			if !amount.Valid {
				skipped++
				continue
			}
			usage := dates[i]
			month := MonthKey(usage)
			all.add(service, MatrixDetailName, "", amount.Value, &usage)
			mt, ok := months[month]
			if !ok {
				mt = newTree()
				months[month] = mt
			}
			mt.add(service, MatrixDetailName, "", amount.Value, &usage)
		}
	}

	if len(all.services) == 0 {
		return nil, &StructuralParseError{Reason: "pivot export has no service totals"}
	}

	meta := datasetMeta{
		provider:   in.Provider,
		account:    resolveAccount(in, nil, -1),
		fileName:   in.FileName,
		importedAt: in.ImportedAt,
		columns: domain.Columns{
			Service:   strings.TrimSpace(headers[0]),
			Cost:      strings.TrimSpace(headers[totalCol]),
			UsageDate: strings.TrimSpace(headers[0]),
			Headers:   append([]string(nil), headers...),
		},
		matrix: true,
	}

	out := &Normalized{
		All:     all.dataset(meta, ""),
		Months:  make(map[string]*domain.Dataset, len(months)),
		Skipped: skipped,
	}
	for key, mt := range months {
		out.Months[key] = mt.dataset(meta, key)
	}
	return out, nil
}

// matrixServiceName strips the currency suffix Cost Explorer appends, as in "EC2-Instances($)".
func matrixServiceName(header string) string {
	name := strings.TrimSpace(strings.TrimPrefix(header, utf8BOM))
	if i := strings.LastIndex(name, "("); i > 0 && strings.HasSuffix(name, ")") {
		name = strings.TrimSpace(name[:i])
	}
	if name == "" {
		return DefaultServiceName
	}
	return name
}

// resolveAccount picks the account label of a file: explicit name, then the
// first non-empty account cell, then the file name.
func resolveAccount(in NormalizeInput, rows [][]string, col int) string {
	if a := strings.TrimSpace(in.Account); a != "" {
		return a
	}
	if col >= 0 {
		for _, row := range rows {
			if v := cell(row, col); v != "" {
				return v
			}
		}
	}
	if in.FileName != "" {
		base := filepath.Base(in.FileName)
		if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
			return name
		}
	}
	return defaultAccountName
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellOr(row []string, i int, fallback string) string {
	if v := cell(row, i); v != "" {
		return v
	}
	return fallback
}

type detailNode struct {
	cost float64
	rows int
}

type serviceNode struct {
	cost        float64
	rows        int
	chargeTypes map[string]int
	minDate     *time.Time
	maxDate     *time.Time
	details     map[string]*detailNode
}

// tree accumulates service and detail totals for one scope (all-time or a month).
type tree struct {
	services map[string]*serviceNode
}

func newTree() *tree {
	return &tree{services: make(map[string]*serviceNode)}
}

func (t *tree) add(service, detail, chargeType string, cost float64, usage *time.Time) {
	s, ok := t.services[service]
	if !ok {
		s = &serviceNode{
			chargeTypes: make(map[string]int),
			details:     make(map[string]*detailNode),
		}
		t.services[service] = s
	}
	s.cost += cost
	s.rows++
	if chargeType != "" {
		s.chargeTypes[chargeType]++
	}
	if usage != nil {
		if s.minDate == nil || usage.Before(*s.minDate) {
			u := *usage
			s.minDate = &u
		}
		if s.maxDate == nil || usage.After(*s.maxDate) {
			u := *usage
			s.maxDate = &u
		}
	}

	d, ok := s.details[detail]
	if !ok {
		d = &detailNode{}
		s.details[detail] = d
	}
	d.cost += cost
	d.rows++
}

type datasetMeta struct {
	provider   domain.Provider
	account    string
	fileName   string
	importedAt time.Time
	columns    domain.Columns
	matrix     bool
}

// dataset converts the tree into a Dataset with shares from final totals.
func (t *tree) dataset(meta datasetMeta, monthKey string) *domain.Dataset {
	ds := &domain.Dataset{
		Provider:           meta.provider,
		MonthKey:           monthKey,
		ImportedAt:         meta.importedAt,
		Columns:            meta.columns,
		Services:           make([]domain.Service, 0, len(t.services)),
		SourceDatasetCount: 1,
		Matrix:             meta.matrix,
	}
	if meta.fileName != "" {
		ds.SourceFiles = []string{meta.fileName}
	}

	for name, node := range t.services {
		svc := domain.Service{
			Provider:    meta.provider,
			Account:     meta.account,
			Name:        name,
			Cost:        node.cost,
			RowCount:    node.rows,
			Details:     make([]domain.Detail, 0, len(node.details)),
			ChargeTypes: domain.RankChargeTypes(node.chargeTypes),
			MinDate:     node.minDate,
			MaxDate:     node.maxDate,
		}
		for dname, d := range node.details {
			svc.Details = append(svc.Details, domain.Detail{Name: dname, Cost: d.cost, RowCount: d.rows})
		}
		ds.Services = append(ds.Services, svc)
		ds.RowCount += node.rows
	}

	ds.Recompute()
	ds.SourceAccounts = []domain.SourceAccount{{
		Name:         meta.account,
		Cost:         ds.TotalCost,
		RowCount:     ds.RowCount,
		FileCount:    1,
		DatasetCount: 1,
	}}
	return ds
}
