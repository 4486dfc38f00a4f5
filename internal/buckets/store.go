// Package buckets keeps imported billing data as one dataset per provider and month.
package buckets

import (
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/merge"
)

// Snapshot is the persisted form of the store: provider -> month -> dataset.
type Snapshot map[domain.Provider]map[string]*domain.Dataset

// InsertResult describes what Insert did to a bucket.
type InsertResult struct {
	// Created is true when the bucket did not exist before.
	Created bool
	// Duplicate is true when the incoming dataset was already merged.
	Duplicate bool
	// Dataset is the bucket content after the insert.
	Dataset *domain.Dataset
}

// Store is safe for concurrent use. Readers get copies; Insert and the clear
// methods are the only writers.
type Store struct {
	mu      sync.RWMutex
	buckets map[domain.Provider]map[string]*domain.Dataset
}

// NewStore creates an empty bucket store.
func NewStore() *Store {
	return &Store{buckets: make(map[domain.Provider]map[string]*domain.Dataset)}
}

// Insert folds ds into the provider's month bucket.
func (s *Store) Insert(provider domain.Provider, monthKey string, ds *domain.Dataset) InsertResult {
	if monthKey == "" {
		monthKey = domain.UnknownMonth
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	months, ok := s.buckets[provider]
	if !ok {
		months = make(map[string]*domain.Dataset)
		s.buckets[provider] = months
	}

	existing, ok := months[monthKey]
	if !ok {
		installed := ds.Clone()
		installed.MonthKey = monthKey
		months[monthKey] = installed
		return InsertResult{Created: true, Dataset: installed.Clone()}
	}

	merged, stats := merge.MergeWithStats(provider, existing, ds)
	if stats.Skipped > 0 {
		return InsertResult{Duplicate: true, Dataset: existing.Clone()}
	}
	merged.MonthKey = monthKey
	months[monthKey] = merged
	return InsertResult{Dataset: merged.Clone()}
}

// GetData answers a query for provider over period. A missing explicit month
// returns nil unless fallback is set, in which case the "all" merge is
// returned. The unified provider merges every real provider's result.
func (s *Store) GetData(provider domain.Provider, period string, fallback bool) (*domain.Dataset, error) {
	p, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if provider == domain.ProviderUnified {
		var parts []*domain.Dataset
		for _, rp := range domain.Providers {
			if ds := s.queryLocked(rp, p, fallback); ds != nil {
				parts = append(parts, ds)
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return merge.Merge(domain.ProviderUnified, parts...), nil
	}

	return s.queryLocked(provider, p, fallback), nil
}

func (s *Store) queryLocked(provider domain.Provider, p Period, fallback bool) *domain.Dataset {
	months := s.buckets[provider]
	if len(months) == 0 {
		return nil
	}

	switch p.Kind {
	case PeriodMonth:
		if ds, ok := months[p.Value]; ok {
			return ds.Clone()
		}
		if !fallback {
			return nil
		}
		return mergeKeys(provider, months, "")
	case PeriodYear:
		return mergeKeys(provider, months, p.Value+"-")
	default:
		return mergeKeys(provider, months, "")
	}
}

// mergeKeys merges the buckets whose key starts with prefix, in key order.
func mergeKeys(provider domain.Provider, months map[string]*domain.Dataset, prefix string) *domain.Dataset {
	var parts []*domain.Dataset
	for _, k := range sortedKeys(months) {
		if strings.HasPrefix(k, prefix) {
			parts = append(parts, months[k])
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return merge.Merge(provider, parts...)
}

// Months lists the bucket keys of provider in ascending order.
func (s *Store) Months(provider domain.Provider) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if provider == domain.ProviderUnified {
		seen := make(map[string]*domain.Dataset)
		for _, p := range domain.Providers {
			for k := range s.buckets[p] {
				seen[k] = nil
			}
		}
		return sortedKeys(seen)
	}
	return sortedKeys(s.buckets[provider])
}

// Providers lists the providers that hold at least one bucket.
func (s *Store) Providers() []domain.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Provider
	for _, p := range domain.Providers {
		if len(s.buckets[p]) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// ClearProvider drops every bucket of provider.
func (s *Store) ClearProvider(provider domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, provider)
}

// Clear drops every bucket.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[domain.Provider]map[string]*domain.Dataset)
}

// Snapshot returns a deep copy of the store for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Snapshot, len(s.buckets))
	for p, months := range s.buckets {
		cp := make(map[string]*domain.Dataset, len(months))
		for k, ds := range months {
			cp[k] = ds.Clone()
		}
		out[p] = cp
	}
	return out
}

// Restore replaces the store content with snap.
func (s *Store) Restore(snap Snapshot) {
	next := make(map[domain.Provider]map[string]*domain.Dataset, len(snap))
	for p, months := range snap {
		if !p.IsReal() {
			continue
		}
		cp := make(map[string]*domain.Dataset, len(months))
		for k, ds := range months {
			if ds != nil {
				cp[k] = ds.Clone()
			}
		}
		next[p] = cp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = next
}

func sortedKeys(m map[string]*domain.Dataset) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
