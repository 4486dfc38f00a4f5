package ingest

import (
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// Field is a logical column of a billing export.
type Field int

const (
	FieldService Field = iota
	FieldCost
	FieldDetail
	FieldChargeType
	FieldUsageDate
)

// scoredFields lists the fields that contribute to detection, in resolution order.
var scoredFields = []Field{FieldService, FieldCost, FieldDetail, FieldChargeType, FieldUsageDate}

// fieldWeights is the detection weight of each field.
var fieldWeights = map[Field]int{
	FieldService:    2,
	FieldCost:       3,
	FieldDetail:     1,
	FieldChargeType: 1,
	FieldUsageDate:  2,
}

func (f Field) String() string {
	switch f {
	case FieldService:
		return "service"
	case FieldCost:
		return "cost"
	case FieldDetail:
		return "detail"
	case FieldChargeType:
		return "chargeType"
	case FieldUsageDate:
		return "usageDate"
	}
	return "unknown"
}

// Schema describes how one provider names its billing columns. Candidates are
// lowercase and listed in priority order.
type Schema struct {
	Provider   domain.Provider
	Candidates map[Field][]string
	// Account candidates are used for labelling only and are not scored.
	Account []string
	// Structural reports whether the header row carries a shape only this
	// provider produces.
	Structural func(headers []string) bool
}

// Registry maps every real provider to its schema.
var Registry = map[domain.Provider]Schema{
	domain.ProviderAWS: {
		Provider: domain.ProviderAWS,
		Candidates: map[Field][]string{
			FieldService:    {"lineitem/productcode", "product/servicename", "product/productname", "product/servicecode", "productcode", "productname"},
			FieldCost:       {"lineitem/unblendedcost", "lineitem/netunblendedcost", "lineitem/blendedcost", "unblendedcost", "blendedcost", "cost"},
			FieldDetail:     {"lineitem/usagetype", "lineitem/lineitemdescription", "product/usagetype", "usagetype", "itemdescription"},
			FieldChargeType: {"lineitem/lineitemtype", "lineitemtype", "recordtype"},
			FieldUsageDate:  {"lineitem/usagestartdate", "usagestartdate", "bill/billingperiodstartdate", "billingperiodstartdate"},
		},
		Account: []string{"lineitem/usageaccountid", "linkedaccountid", "linkedaccountname", "bill/payeraccountid", "payeraccountid"},
		Structural: func(headers []string) bool {
			for _, h := range headers {
				if strings.HasPrefix(h, "lineitem/") || strings.HasPrefix(h, "product/") {
					return true
				}
			}
			return false
		},
	},
	domain.ProviderAzure: {
		Provider: domain.ProviderAzure,
		Candidates: map[Field][]string{
			FieldService:    {"metercategory", "servicename", "consumedservice", "service name"},
			FieldCost:       {"costinbillingcurrency", "pretaxcost", "costinusd", "extendedcost", "cost"},
			FieldDetail:     {"metersubcategory", "metername", "product", "resourcename"},
			FieldChargeType: {"chargetype", "pricingmodel"},
			FieldUsageDate:  {"date", "usagedatetime", "usagedate", "billingperiodstartdate"},
		},
		Account: []string{"subscriptionname", "subscriptionid", "billingaccountname", "accountname"},
		Structural: func(headers []string) bool {
			return hasHeader(headers, "costinbillingcurrency")
		},
	},
	domain.ProviderGCP: {
		Provider: domain.ProviderGCP,
		Candidates: map[Field][]string{
			FieldService:    {"service.description", "service description", "service"},
			FieldCost:       {"cost", "cost ($)", "cost (usd)"},
			FieldDetail:     {"sku.description", "sku description", "sku"},
			FieldChargeType: {"cost_type", "cost type"},
			FieldUsageDate:  {"usage_start_time", "usage start date", "usage_date", "invoice.month"},
		},
		Account: []string{"project.name", "project.id", "project name", "project id", "billing_account_id", "billing account id"},
		Structural: func(headers []string) bool {
			return hasHeader(headers, "service.description") || hasHeader(headers, "usage_start_time")
		},
	},
	domain.ProviderRackspace: {
		Provider: domain.ProviderRackspace,
		Candidates: map[Field][]string{
			FieldService:    {"service_type", "service type", "product_type", "product"},
			FieldCost:       {"amount", "total", "charge", "cost"},
			FieldDetail:     {"impact_type", "description", "res_name", "resource_name"},
			FieldChargeType: {"event_type", "charge_type"},
			FieldUsageDate:  {"event_start_date", "usage_date", "start_date", "bill_start_date"},
		},
		Account: []string{"account_name", "account_number", "account"},
		Structural: func(headers []string) bool {
			return hasHeader(headers, "service_type") || hasHeader(headers, "impact_type")
		},
	},
}

// SchemaFor returns the schema registered for p.
func SchemaFor(p domain.Provider) (Schema, bool) {
	s, ok := Registry[p]
	return s, ok
}

// normalizeHeaders lowercases and trims header cells for matching.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimPrefix(h, utf8BOM)
		h = strings.Trim(strings.TrimSpace(h), `"`)
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if h == name {
			return true
		}
	}
	return false
}

// matchesAny reports whether any candidate appears in headers exactly or as a substring.
func matchesAny(headers []string, candidates []string) bool {
	for _, c := range candidates {
		for _, h := range headers {
			if h == c || strings.Contains(h, c) {
				return true
			}
		}
	}
	return false
}

// ColumnIndex holds resolved column positions; -1 means unresolved.
type ColumnIndex struct {
	Service    int
	Cost       int
	Detail     int
	ChargeType int
	UsageDate  int
	Account    int
}

// ResolveColumns maps the schema's candidates onto a header row. Each field
// prefers an exact match in candidate order and falls back to a substring
// match. A column is never assigned to two fields; cost resolves first.
func ResolveColumns(schema Schema, headers []string) ColumnIndex {
	norm := normalizeHeaders(headers)
	used := make(map[int]bool)

	resolve := func(candidates []string) int {
		for _, c := range candidates {
			for i, h := range norm {
				if !used[i] && h == c {
					used[i] = true
					return i
				}
			}
		}
		for _, c := range candidates {
			for i, h := range norm {
				if !used[i] && strings.Contains(h, c) {
					used[i] = true
					return i
				}
			}
		}
		return -1
	}

	idx := ColumnIndex{}
	idx.Cost = resolve(schema.Candidates[FieldCost])
	idx.Service = resolve(schema.Candidates[FieldService])
	idx.Detail = resolve(schema.Candidates[FieldDetail])
	idx.ChargeType = resolve(schema.Candidates[FieldChargeType])
	idx.UsageDate = resolve(schema.Candidates[FieldUsageDate])
	idx.Account = resolve(schema.Account)
	return idx
}

// Columns converts resolved indices to the header names recorded on a Dataset.
func (c ColumnIndex) Columns(headers []string) domain.Columns {
	name := func(i int) string {
		if i < 0 || i >= len(headers) {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(headers[i], utf8BOM))
	}
	return domain.Columns{
		Service:    name(c.Service),
		Cost:       name(c.Cost),
		Detail:     name(c.Detail),
		ChargeType: name(c.ChargeType),
		UsageDate:  name(c.UsageDate),
		Account:    name(c.Account),
		Headers:    append([]string(nil), headers...),
	}
}
