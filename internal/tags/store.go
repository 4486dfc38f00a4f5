// Package tags stores user product/app and tag assignments for services and line items.
package tags

import (
	"sort"
	"sync"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// ServiceTags is the persisted form of service-level assignments: provider -> service -> entry.
type ServiceTags map[domain.Provider]map[string]domain.TagEntry

// DetailTags is the persisted form of detail-level assignments: provider -> service -> detail -> entry.
type DetailTags map[domain.Provider]map[string]map[string]domain.TagEntry

// Store holds both assignment maps. Writing an empty entry deletes the key.
type Store struct {
	mu       sync.RWMutex
	services ServiceTags
	details  DetailTags
}

// NewStore creates an empty tag store.
func NewStore() *Store {
	return &Store{
		services: make(ServiceTags),
		details:  make(DetailTags),
	}
}

// SetService assigns entry to a service.
func (s *Store) SetService(provider domain.Provider, service string, entry domain.TagEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setServiceLocked(provider, service, entry)
}

func (s *Store) setServiceLocked(provider domain.Provider, service string, entry domain.TagEntry) {
	entry = entry.Normalize()
	if entry.IsEmpty() {
		if m, ok := s.services[provider]; ok {
			delete(m, service)
			if len(m) == 0 {
				delete(s.services, provider)
			}
		}
		return
	}

	m, ok := s.services[provider]
	if !ok {
		m = make(map[string]domain.TagEntry)
		s.services[provider] = m
	}
	m[service] = entry
}

// Service returns the service-level entry.
func (s *Store) Service(provider domain.Provider, service string) (domain.TagEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.services[provider][service]
	return e, ok
}

// SetDetail assigns entry to one line item of a service.
func (s *Store) SetDetail(provider domain.Provider, service, detail string, entry domain.TagEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDetailLocked(provider, service, detail, entry)
}

func (s *Store) setDetailLocked(provider domain.Provider, service, detail string, entry domain.TagEntry) {
	entry = entry.Normalize()
	if entry.IsEmpty() {
		byService, ok := s.details[provider]
		if !ok {
			return
		}
		if m, ok := byService[service]; ok {
			delete(m, detail)
			if len(m) == 0 {
				delete(byService, service)
			}
		}
		if len(byService) == 0 {
			delete(s.details, provider)
		}
		return
	}

	byService, ok := s.details[provider]
	if !ok {
		byService = make(map[string]map[string]domain.TagEntry)
		s.details[provider] = byService
	}
	m, ok := byService[service]
	if !ok {
		m = make(map[string]domain.TagEntry)
		byService[service] = m
	}
	m[detail] = entry
}

// Detail returns the detail-level entry.
func (s *Store) Detail(provider domain.Provider, service, detail string) (domain.TagEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.details[provider][service][detail]
	return e, ok
}

// ApplySelection assigns entry to every key of sel in one pass. Keys with
// an empty Detail address the service itself. It returns the number of keys
// written.
func (s *Store) ApplySelection(provider domain.Provider, sel Selection, entry domain.TagEntry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range sel {
		if key.Detail == "" {
			s.setServiceLocked(provider, key.Service, entry)
		} else {
			s.setDetailLocked(provider, key.Service, key.Detail, entry)
		}
	}
	return len(sel)
}

// ClearSelection removes the assignments of every key of sel.
func (s *Store) ClearSelection(provider domain.Provider, sel Selection) int {
	return s.ApplySelection(provider, sel, domain.TagEntry{})
}

// ClearProvider removes every assignment of provider.
func (s *Store) ClearProvider(provider domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.services, provider)
	delete(s.details, provider)
}

// ProductApps lists the distinct product/apps assigned for provider, or for
// every provider when provider is unified.
func (s *Store) ProductApps(provider domain.Provider) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	add := func(e domain.TagEntry) {
		if e.HasProductApp() && !seen[e.ProductApp] {
			seen[e.ProductApp] = true
			out = append(out, e.ProductApp)
		}
	}
	for p, m := range s.services {
		if provider != domain.ProviderUnified && p != provider {
			continue
		}
		for _, e := range m {
			add(e)
		}
	}
	for p, byService := range s.details {
		if provider != domain.ProviderUnified && p != provider {
			continue
		}
		for _, m := range byService {
			for _, e := range m {
				add(e)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns deep copies of both maps for persistence.
func (s *Store) Snapshot() (ServiceTags, DetailTags) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make(ServiceTags, len(s.services))
	for p, m := range s.services {
		cp := make(map[string]domain.TagEntry, len(m))
		for k, e := range m {
			cp[k] = copyEntry(e)
		}
		services[p] = cp
	}

	details := make(DetailTags, len(s.details))
	for p, byService := range s.details {
		cpService := make(map[string]map[string]domain.TagEntry, len(byService))
		for svc, m := range byService {
			cp := make(map[string]domain.TagEntry, len(m))
			for k, e := range m {
				cp[k] = copyEntry(e)
			}
			cpService[svc] = cp
		}
		details[p] = cpService
	}
	return services, details
}

// Restore replaces both maps. Entries are normalized and empty ones dropped.
func (s *Store) Restore(services ServiceTags, details DetailTags) {
	next := NewStore()
	for p, m := range services {
		for svc, e := range m {
			next.setServiceLocked(p, svc, e)
		}
	}
	for p, byService := range details {
		for svc, m := range byService {
			for d, e := range m {
				next.setDetailLocked(p, svc, d, e)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = next.services
	s.details = next.details
}

func copyEntry(e domain.TagEntry) domain.TagEntry {
	return domain.TagEntry{ProductApp: e.ProductApp, Tags: append([]string(nil), e.Tags...)}
}
