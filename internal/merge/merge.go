// Package merge folds billing datasets together without double-counting.
package merge

import (
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// Stats reports what a merge did with its inputs.
type Stats struct {
	Merged  int
	Skipped int
}

// Merge combines datasets for provider. See MergeWithStats.
func Merge(provider domain.Provider, datasets ...*domain.Dataset) *domain.Dataset {
	ds, _ := MergeWithStats(provider, datasets...)
	return ds
}

// MergeWithStats combines datasets for provider. A dataset whose signatures
// are all already accumulated is skipped, which makes merging idempotent.
// Services are keyed by (provider, account, name) and shares are recomputed
// from the merged totals. Inputs are not modified.
func MergeWithStats(provider domain.Provider, datasets ...*domain.Dataset) (*domain.Dataset, Stats) {
	acc := newAccumulator(provider)
	var stats Stats

	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if acc.covers(ds.SourceSignatures) {
			stats.Skipped++
			continue
		}
		acc.add(ds)
		stats.Merged++
	}

	return acc.dataset(), stats
}

type serviceKey struct {
	provider domain.Provider
	account  string
	name     string
}

type serviceAcc struct {
	svc         domain.Service
	chargeTypes map[string]int
	details     map[string]*domain.Detail
	detailOrder []string
}

type accumulator struct {
	provider   domain.Provider
	importedAt time.Time
	rowCount   int
	columns    domain.Columns
	columnsSet bool
	monthKey   string
	monthSet   bool
	matrix     bool
	datasets   int

	services     map[serviceKey]*serviceAcc
	serviceOrder []serviceKey

	files    []string
	fileSeen map[string]bool

	accounts     map[string]*domain.SourceAccount
	accountOrder []string

	signatures []string
	sigSeen    map[string]bool
}

func newAccumulator(provider domain.Provider) *accumulator {
	return &accumulator{
		provider: provider,
		services: make(map[serviceKey]*serviceAcc),
		fileSeen: make(map[string]bool),
		accounts: make(map[string]*domain.SourceAccount),
		sigSeen:  make(map[string]bool),
	}
}

// covers reports whether every signature in sigs is already accumulated.
// An unsigned dataset is never considered a duplicate.
func (a *accumulator) covers(sigs []string) bool {
	if len(sigs) == 0 {
		return false
	}
	for _, s := range sigs {
		if !a.sigSeen[s] {
			return false
		}
	}
	return true
}

func (a *accumulator) add(ds *domain.Dataset) {
	if ds.ImportedAt.After(a.importedAt) {
		a.importedAt = ds.ImportedAt
	}
	a.rowCount += ds.RowCount
	a.matrix = a.matrix || ds.Matrix
	a.datasets += ds.SourceDatasetCount

	if !a.columnsSet {
		a.columns = ds.Columns
		a.columns.Headers = append([]string(nil), ds.Columns.Headers...)
		a.columnsSet = true
	}

	if !a.monthSet {
		a.monthKey = ds.MonthKey
		a.monthSet = true
	} else if a.monthKey != ds.MonthKey {
		a.monthKey = ""
	}

	for _, s := range ds.SourceSignatures {
		if !a.sigSeen[s] {
			a.sigSeen[s] = true
			a.signatures = append(a.signatures, s)
		}
	}

	for _, f := range ds.SourceFiles {
		if !a.fileSeen[f] {
			a.fileSeen[f] = true
			a.files = append(a.files, f)
		}
	}

	for _, sa := range ds.SourceAccounts {
		acc, ok := a.accounts[sa.Name]
		if !ok {
			acc = &domain.SourceAccount{Name: sa.Name}
			a.accounts[sa.Name] = acc
			a.accountOrder = append(a.accountOrder, sa.Name)
		}
		acc.Cost += sa.Cost
		acc.RowCount += sa.RowCount
		acc.FileCount += sa.FileCount
		acc.DatasetCount += sa.DatasetCount
	}

	for _, s := range ds.Services {
		a.addService(ds.Provider, s)
	}
}

func (a *accumulator) addService(provider domain.Provider, s domain.Service) {
	if s.Provider == "" {
		s.Provider = provider
	}
	key := serviceKey{provider: s.Provider, account: s.Account, name: s.Name}

	sa, ok := a.services[key]
	if !ok {
		sa = &serviceAcc{
			svc: domain.Service{
				Provider: s.Provider,
				Account:  s.Account,
				Name:     s.Name,
			},
			chargeTypes: make(map[string]int),
			details:     make(map[string]*domain.Detail),
		}
		a.services[key] = sa
		a.serviceOrder = append(a.serviceOrder, key)
	}

	sa.svc.Cost += s.Cost
	sa.svc.RowCount += s.RowCount
	for _, ct := range s.ChargeTypes {
		sa.chargeTypes[ct.Value] += ct.Count
	}
	sa.svc.MinDate = earliest(sa.svc.MinDate, s.MinDate)
	sa.svc.MaxDate = latest(sa.svc.MaxDate, s.MaxDate)

	for _, d := range s.Details {
		det, ok := sa.details[d.Name]
		if !ok {
			det = &domain.Detail{Name: d.Name}
			sa.details[d.Name] = det
			sa.detailOrder = append(sa.detailOrder, d.Name)
		}
		det.Cost += d.Cost
		det.RowCount += d.RowCount
	}
}

func (a *accumulator) dataset() *domain.Dataset {
	ds := &domain.Dataset{
		Provider:           a.provider,
		MonthKey:           a.monthKey,
		ImportedAt:         a.importedAt,
		RowCount:           a.rowCount,
		Columns:            a.columns,
		Services:           make([]domain.Service, 0, len(a.serviceOrder)),
		SourceFiles:        a.files,
		SourceSignatures:   a.signatures,
		SourceDatasetCount: a.datasets,
		Matrix:             a.matrix,
	}

	for _, key := range a.serviceOrder {
		sa := a.services[key]
		svc := sa.svc
		svc.ChargeTypes = domain.RankChargeTypes(sa.chargeTypes)
		svc.Details = make([]domain.Detail, 0, len(sa.detailOrder))
		for _, name := range sa.detailOrder {
			svc.Details = append(svc.Details, *sa.details[name])
		}
		ds.Services = append(ds.Services, svc)
	}

	for _, name := range a.accountOrder {
		ds.SourceAccounts = append(ds.SourceAccounts, *a.accounts[name])
	}

	ds.Recompute()
	return ds
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case b == nil:
		return a
	case a == nil || b.Before(*a):
		t := *b
		return &t
	}
	return a
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case b == nil:
		return a
	case a == nil || b.After(*a):
		t := *b
		return &t
	}
	return a
}
