package domain

import (
	"sort"
)

// MaxChargeTypes is how many charge-type values a service keeps.
const MaxChargeTypes = 3

// RankChargeTypes orders charge-type counts by frequency (ties by value) and
// keeps the top MaxChargeTypes.
func RankChargeTypes(counts map[string]int) []ChargeTypeCount {
	out := make([]ChargeTypeCount, 0, len(counts))
	for v, c := range counts {
		if v == "" || c <= 0 {
			continue
		}
		out = append(out, ChargeTypeCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > MaxChargeTypes {
		out = out[:MaxChargeTypes]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Recompute derives the totals and shares of d from its services and sorts
// services and details by cost. Shares are never carried over from inputs.
func (d *Dataset) Recompute() {
	var total float64
	for _, s := range d.Services {
		total += s.Cost
	}
	d.TotalCost = total
	d.ServiceCount = len(d.Services)

	for i := range d.Services {
		if total != 0 {
			d.Services[i].Share = d.Services[i].Cost / total * 100
		} else {
			d.Services[i].Share = 0
		}
		sortDetails(d.Services[i].Details)
	}

	sort.SliceStable(d.Services, func(i, j int) bool {
		a, b := d.Services[i], d.Services[j]
		if a.Cost != b.Cost {
			return a.Cost > b.Cost
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		return a.Provider < b.Provider
	})
}

func sortDetails(details []Detail) {
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].Cost != details[j].Cost {
			return details[i].Cost > details[j].Cost
		}
		return details[i].Name < details[j].Name
	})
}
