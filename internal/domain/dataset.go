package domain

import (
	"time"
)

// UnknownMonth is the bucket key for rows without a usable usage date.
const UnknownMonth = "unknown"

// Detail is one line-item bucket under a service.
type Detail struct {
	Name     string  `json:"name"`
	Cost     float64 `json:"cost"`
	RowCount int     `json:"row_count"`
}

// ChargeTypeCount is a charge-type value and how many rows carried it.
type ChargeTypeCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Service is the normalized aggregate of all rows for one service of one account.
// Provider and Account are carried so merged and unified views keep services
// from different sources apart.
type Service struct {
	Provider    Provider          `json:"provider"`
	Account     string            `json:"account"`
	Name        string            `json:"name"`
	Cost        float64           `json:"cost"`
	RowCount    int               `json:"row_count"`
	Share       float64           `json:"share"`
	Details     []Detail          `json:"details"`
	ChargeTypes []ChargeTypeCount `json:"charge_types,omitempty"`
	MinDate     *time.Time        `json:"min_date,omitempty"`
	MaxDate     *time.Time        `json:"max_date,omitempty"`
}

// TopChargeTypes returns the charge-type values in rank order.
func (s Service) TopChargeTypes() []string {
	out := make([]string, 0, len(s.ChargeTypes))
	for _, ct := range s.ChargeTypes {
		out = append(out, ct.Value)
	}
	return out
}

// DetailCost sums the cost of every detail under the service.
func (s Service) DetailCost() float64 {
	var total float64
	for _, d := range s.Details {
		total += d.Cost
	}
	return total
}

// Columns records which source headers were resolved for each field.
type Columns struct {
	Service    string   `json:"service"`
	Cost       string   `json:"cost"`
	Detail     string   `json:"detail,omitempty"`
	ChargeType string   `json:"charge_type,omitempty"`
	UsageDate  string   `json:"usage_date,omitempty"`
	Account    string   `json:"account,omitempty"`
	Headers    []string `json:"headers,omitempty"`
}

// SourceAccount is the per-account bookkeeping carried through merges.
type SourceAccount struct {
	Name         string  `json:"name"`
	Cost         float64 `json:"cost"`
	RowCount     int     `json:"row_count"`
	FileCount    int     `json:"file_count"`
	DatasetCount int     `json:"dataset_count"`
}

// Dataset is normalized, aggregated billing data for one provider and period.
// Datasets are treated as immutable: merges and queries build new values.
type Dataset struct {
	Provider           Provider        `json:"provider"`
	MonthKey           string          `json:"month_key,omitempty"`
	ImportedAt         time.Time       `json:"imported_at"`
	RowCount           int             `json:"row_count"`
	ServiceCount       int             `json:"service_count"`
	TotalCost          float64         `json:"total_cost"`
	Columns            Columns         `json:"columns"`
	Services           []Service       `json:"services"`
	SourceFiles        []string        `json:"source_files"`
	SourceAccounts     []SourceAccount `json:"source_accounts"`
	SourceSignatures   []string        `json:"source_signatures"`
	SourceDatasetCount int             `json:"source_dataset_count"`
	Matrix             bool            `json:"matrix,omitempty"`
}

// Service looks up a service by account and name.
func (d *Dataset) Service(account, name string) (Service, bool) {
	if d == nil {
		return Service{}, false
	}
	for _, s := range d.Services {
		if s.Account == account && s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// ServiceByName returns the first service with the given name.
func (d *Dataset) ServiceByName(name string) (Service, bool) {
	if d == nil {
		return Service{}, false
	}
	for _, s := range d.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// Clone returns a deep copy so callers can hand out datasets without sharing slices.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := *d
	out.Columns.Headers = append([]string(nil), d.Columns.Headers...)
	out.Services = make([]Service, len(d.Services))
	for i, s := range d.Services {
		s.Details = append([]Detail(nil), s.Details...)
		s.ChargeTypes = append([]ChargeTypeCount(nil), s.ChargeTypes...)
		out.Services[i] = s
	}
	out.SourceFiles = append([]string(nil), d.SourceFiles...)
	out.SourceAccounts = append([]SourceAccount(nil), d.SourceAccounts...)
	out.SourceSignatures = append([]string(nil), d.SourceSignatures...)
	return &out
}
