// Package rollup filters and groups billing datasets by tag assignments.
package rollup

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

const (
	// UntaggedFilter selects cost that has no product/app at service or line-item level.
	UntaggedFilter = "__untagged__"
	// UntaggedBucket collects cost no assignment claims.
	UntaggedBucket = "Untagged"
	// minRemainder is the smallest leftover that gets an Untagged share.
	minRemainder = 0.01
)

// GroupBy is the bucketing dimension of a rollup.
type GroupBy string

const (
	GroupByService    GroupBy = "service"
	GroupByAccount    GroupBy = "account"
	GroupByProductApp GroupBy = "productApp"
	GroupByTag        GroupBy = "tag"
)

// ParseGroupBy accepts the dimension names case-insensitively, with
// "product_app" as an alias.
func ParseGroupBy(s string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "service":
		return GroupByService, nil
	case "account":
		return GroupByAccount, nil
	case "productapp", "product_app":
		return GroupByProductApp, nil
	case "tag", "tags":
		return GroupByTag, nil
	}
	return "", fmt.Errorf("invalid group by %q", s)
}

// TagLookup resolves assignments for services and their line items.
type TagLookup interface {
	Service(provider domain.Provider, service string) (domain.TagEntry, bool)
	Detail(provider domain.Provider, service, detail string) (domain.TagEntry, bool)
}

// Query selects what a rollup includes and how it is grouped.
type Query struct {
	FilterProductApp string  `json:"filter_product_app,omitempty"`
	GroupBy          GroupBy `json:"group_by"`
}

// ServiceView is a service as seen through the filter. Partial services
// keep only the line items the filter selected, with cost and row count
// reduced to match.
type ServiceView struct {
	domain.Service
	Label   string          `json:"label"`
	Partial bool            `json:"partial,omitempty"`
	Tags    domain.TagEntry `json:"tags"`
}

// Bucket is one group of a rollup.
type Bucket struct {
	Key          string  `json:"key"`
	Cost         float64 `json:"cost"`
	Share        float64 `json:"share"`
	ServiceCount int     `json:"service_count"`
}

// Result is a filtered, grouped view of a dataset.
type Result struct {
	Provider  domain.Provider `json:"provider"`
	Query     Query           `json:"query"`
	TotalCost float64         `json:"total_cost"`
	RowCount  int             `json:"row_count"`
	Services  []ServiceView   `json:"services"`
	Buckets   []Bucket        `json:"buckets"`
}

// Run filters ds and groups the remaining cost. The bucket costs of the
// result add up to TotalCost, up to remainders below one cent.
func Run(ds *domain.Dataset, lookup TagLookup, q Query) Result {
	if q.GroupBy == "" {
		q.GroupBy = GroupByService
	}
	res := Result{Query: q}
	if ds == nil {
		return res
	}
	res.Provider = ds.Provider

	unified := ds.Provider == domain.ProviderUnified
	res.Services = filterServices(ds, lookup, q.FilterProductApp, unified)
	for _, sv := range res.Services {
		res.TotalCost += sv.Cost
		res.RowCount += sv.RowCount
	}
	for i := range res.Services {
		if res.TotalCost != 0 {
			res.Services[i].Share = res.Services[i].Cost / res.TotalCost * 100
		} else {
			res.Services[i].Share = 0
		}
	}

	res.Buckets = group(res.Services, lookup, q.GroupBy, unified, res.TotalCost)
	return res
}

func filterServices(ds *domain.Dataset, lookup TagLookup, filter string, unified bool) []ServiceView {
	filter = strings.TrimSpace(filter)
	out := make([]ServiceView, 0, len(ds.Services))

	for _, svc := range ds.Services {
		entry, _ := lookup.Service(svc.Provider, svc.Name)
		view := ServiceView{
			Service: cloneService(svc),
			Label:   label(svc.Provider, svc.Name, unified),
			Tags:    entry,
		}

		switch {
		case filter == "":
			out = append(out, view)

		case filter == UntaggedFilter:
			if entry.HasProductApp() {
				continue
			}
			var kept []domain.Detail
			var removedCost float64
			var removedRows int
			for _, d := range svc.Details {
				de, _ := lookup.Detail(svc.Provider, svc.Name, d.Name)
				if de.HasProductApp() {
					removedCost += d.Cost
					removedRows += d.RowCount
					continue
				}
				kept = append(kept, d)
			}
			if len(kept) == len(svc.Details) {
				out = append(out, view)
				continue
			}
			view.Cost = svc.Cost - removedCost
			view.RowCount = svc.RowCount - removedRows
			view.Details = kept
			view.Partial = true
			if len(kept) == 0 && math.Abs(view.Cost) < minRemainder {
				continue
			}
			out = append(out, view)

		default:
			if entry.MatchesProductApp(filter) {
				out = append(out, view)
				continue
			}
			var matched []domain.Detail
			var cost float64
			var rows int
			for _, d := range svc.Details {
				de, _ := lookup.Detail(svc.Provider, svc.Name, d.Name)
				if de.MatchesProductApp(filter) {
					matched = append(matched, d)
					cost += d.Cost
					rows += d.RowCount
				}
			}
			if len(matched) == 0 {
				continue
			}
			view.Cost = cost
			view.RowCount = rows
			view.Details = matched
			view.Partial = true
			out = append(out, view)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost > out[j].Cost
		}
		return out[i].Label < out[j].Label
	})
	return out
}

type bucketAcc struct {
	foldCase bool
	order    []string
	buckets  map[string]*Bucket
	services map[string]map[string]bool
}

// newBucketAcc returns an empty accumulator. With foldCase, keys compare
// case-insensitively and keep the first spelling seen.
func newBucketAcc(foldCase bool) *bucketAcc {
	return &bucketAcc{
		foldCase: foldCase,
		buckets:  make(map[string]*Bucket),
		services: make(map[string]map[string]bool),
	}
}

// add credits cost to the bucket named key.
func (a *bucketAcc) add(key string, cost float64, serviceID string) {
	norm := key
	if a.foldCase {
		norm = strings.ToLower(key)
	}
	b, ok := a.buckets[norm]
	if !ok {
		b = &Bucket{Key: key}
		a.buckets[norm] = b
		a.services[norm] = make(map[string]bool)
		a.order = append(a.order, norm)
	}
	b.Cost += cost
	if !a.services[norm][serviceID] {
		a.services[norm][serviceID] = true
		b.ServiceCount++
	}
}

func (a *bucketAcc) result(total float64) []Bucket {
	out := make([]Bucket, 0, len(a.order))
	for _, k := range a.order {
		b := *a.buckets[k]
		if total != 0 {
			b.Share = b.Cost / total * 100
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost > out[j].Cost
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func group(services []ServiceView, lookup TagLookup, by GroupBy, unified bool, total float64) []Bucket {
	// Service and account names are literal; assignments are user-typed.
	acc := newBucketAcc(by == GroupByProductApp || by == GroupByTag)

	for _, sv := range services {
		id := string(sv.Provider) + "/" + sv.Account + "/" + sv.Name

		switch by {
		case GroupByAccount:
			acc.add(label(sv.Provider, sv.Account, unified), sv.Cost, id)

		case GroupByProductApp:
			if !sv.Partial && sv.Tags.HasProductApp() {
				acc.add(sv.Tags.ProductApp, sv.Cost, id)
				continue
			}
			var distributed float64
			for _, d := range sv.Details {
				de, _ := lookup.Detail(sv.Provider, sv.Name, d.Name)
				if de.HasProductApp() {
					acc.add(de.ProductApp, d.Cost, id)
					distributed += d.Cost
				}
			}
			addRemainder(acc, sv.Cost-distributed, id)

		case GroupByTag:
			if !sv.Partial && len(sv.Tags.Tags) > 0 {
				split(acc, sv.Tags.Tags, sv.Cost, id)
				continue
			}
			var distributed float64
			for _, d := range sv.Details {
				de, _ := lookup.Detail(sv.Provider, sv.Name, d.Name)
				if len(de.Tags) > 0 {
					split(acc, de.Tags, d.Cost, id)
					distributed += d.Cost
				}
			}
			addRemainder(acc, sv.Cost-distributed, id)

		default:
			acc.add(sv.Label, sv.Cost, id)
		}
	}

	return acc.result(total)
}

// split spreads cost evenly over tags.
func split(acc *bucketAcc, tags []string, cost float64, id string) {
	part := cost / float64(len(tags))
	for _, t := range tags {
		acc.add(t, part, id)
	}
}

func addRemainder(acc *bucketAcc, remainder float64, id string) {
	if math.Abs(remainder) >= minRemainder {
		acc.add(UntaggedBucket, remainder, id)
	}
}

func label(provider domain.Provider, name string, unified bool) string {
	if unified {
		return provider.Label() + ": " + name
	}
	return name
}

func cloneService(s domain.Service) domain.Service {
	s.Details = append([]domain.Detail(nil), s.Details...)
	s.ChargeTypes = append([]domain.ChargeTypeCount(nil), s.ChargeTypes...)
	return s
}
