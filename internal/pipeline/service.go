package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/export"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
	"github.com/dvloznov/cost-dashboard/internal/tags"
)

// Service ties the import steps, stores, rollups and persistence together.
// Mutations are serialized and followed by a state save; a failed save is
// returned while the in-memory state keeps the change.
type Service struct {
	mu       sync.Mutex
	state    *persist.State
	kv       StateStore
	importer *ingest.Importer
	storage  StorageService
	observer SaveObserver
}

// Option configures a Service.
type Option func(*Service)

// WithStorage enables importing gs:// sources.
func WithStorage(s StorageService) Option {
	return func(svc *Service) { svc.storage = s }
}

// WithSaveObserver reports failed state writes.
func WithSaveObserver(o SaveObserver) Option {
	return func(svc *Service) { svc.observer = o }
}

// WithImporterOptions passes options to the underlying importer.
func WithImporterOptions(opts ...ingest.Option) Option {
	return func(svc *Service) {
		svc.importer = ingest.NewImporter(svc.state.Buckets, opts...)
	}
}

// NewService creates a service over loaded state. kv may be nil to skip saving.
func NewService(state *persist.State, kv StateStore, opts ...Option) *Service {
	if state == nil {
		state = persist.NewState()
	}
	svc := &Service{
		state: state,
		kv:    kv,
	}
	svc.importer = ingest.NewImporter(state.Buckets)
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Load reads saved state from kv and creates a service over it. State signed
// under a different signature scheme than the importer's is refused, since
// every re-import would look new and count twice.
func Load(ctx context.Context, kv StateStore, opts ...Option) (*Service, error) {
	state, err := persist.LoadState(ctx, kv)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	svc := NewService(state, kv, opts...)
	if err := checkSignatureScheme(state, svc.importer.SignaturePrefix()); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return svc, nil
}

func checkSignatureScheme(state *persist.State, want string) error {
	for provider, months := range state.Buckets.Snapshot() {
		for month, ds := range months {
			for _, sig := range ds.SourceSignatures {
				if got := ingest.SignaturePrefix(sig); got != want {
					return fmt.Errorf("%w: %s/%s holds %q signatures, importer signs with %q",
						ErrSignatureScheme, provider, month, got, want)
				}
			}
		}
	}
	return nil
}

// State exposes the underlying stores.
func (s *Service) State() *persist.State {
	return s.state
}

// Save writes the current state.
func (s *Service) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Service) saveLocked(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	if err := persist.SaveState(ctx, s.kv, s.state); err != nil {
		if s.observer != nil {
			s.observer.StateSaveFailed()
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to save state")
		return err
	}
	return nil
}

// Import runs a batch through the importer and saves the state. The summary
// is returned even when some files failed; err is then an *ingest.BatchError,
// or a persistence error when the save failed.
func (s *Service) Import(ctx context.Context, provider domain.Provider, files []ingest.File, opts ingest.Options) (*ingest.Summary, error) {
	if !provider.IsReal() {
		return nil, fmt.Errorf("Import: cannot import into %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary, importErr := s.importer.ImportBatch(ctx, provider, files, opts)
	if summary != nil && summary.FilesImported > 0 {
		if err := s.saveLocked(ctx); err != nil {
			return summary, fmt.Errorf("Import: saving state: %w", err)
		}
	}
	return summary, importErr
}

// ImportSources reads each source (a local file path handled by read, or a
// gs:// URI fetched from Cloud Storage) and imports the batch.
func (s *Service) ImportSources(ctx context.Context, provider domain.Provider, sources []string, read func(string) ([]byte, error), opts ingest.Options) (*ingest.Summary, error) {
	files := make([]ingest.File, 0, len(sources))
	for _, src := range sources {
		var (
			data []byte
			err  error
		)
		if strings.HasPrefix(src, "gs://") {
			if s.storage == nil {
				return nil, fmt.Errorf("ImportSources: no storage configured for %s", src)
			}
			data, err = s.storage.FetchFromGCS(ctx, src)
		} else {
			data, err = read(src)
		}
		if err != nil {
			return nil, fmt.Errorf("ImportSources: reading %s: %w", src, err)
		}
		files = append(files, ingest.File{Name: sourceName(src), Content: data})
	}
	return s.Import(ctx, provider, files, opts)
}

func sourceName(src string) string {
	if i := strings.LastIndex(src, "/"); i >= 0 && i < len(src)-1 {
		return src[i+1:]
	}
	return src
}

// Dataset answers a period query.
func (s *Service) Dataset(provider domain.Provider, period string, fallback bool) (*domain.Dataset, error) {
	if period == "" {
		period = DefaultPeriod
	}
	ds, err := s.state.Buckets.GetData(provider, period, fallback)
	if err != nil {
		return nil, fmt.Errorf("Dataset: %w", err)
	}
	return ds, nil
}

// Months lists the bucket keys of a provider.
func (s *Service) Months(provider domain.Provider) []string {
	return s.state.Buckets.Months(provider)
}

// Providers lists providers holding data.
func (s *Service) Providers() []domain.Provider {
	return s.state.Buckets.Providers()
}

// Clear drops every bucket of provider (all of them for the unified view)
// and saves.
func (s *Service) Clear(ctx context.Context, provider domain.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if provider == domain.ProviderUnified {
		s.state.Buckets.Clear()
	} else {
		s.state.Buckets.ClearProvider(provider)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("provider", string(provider)).Msg("Cleared provider data")
	return s.saveLocked(ctx)
}

// Rollup filters and groups the dataset of one period.
func (s *Service) Rollup(provider domain.Provider, period string, fallback bool, q rollup.Query) (rollup.Result, *domain.Dataset, error) {
	ds, err := s.Dataset(provider, period, fallback)
	if err != nil {
		return rollup.Result{}, nil, err
	}
	res := rollup.Run(ds, s.state.Tags, q)
	if res.Provider == "" {
		res.Provider = provider
	}
	return res, ds, nil
}

// ExportRows builds the export records of one period and filter.
func (s *Service) ExportRows(provider domain.Provider, period string, fallback bool, filter string) ([]export.Row, error) {
	res, ds, err := s.Rollup(provider, period, fallback, rollup.Query{FilterProductApp: filter})
	if err != nil {
		return nil, err
	}
	return export.BuildRows(ds, res, s.state.Tags), nil
}

// SetServiceTag assigns entry to a service; an empty entry removes it.
func (s *Service) SetServiceTag(ctx context.Context, provider domain.Provider, service string, entry domain.TagEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tags.SetService(provider, service, entry)
	return s.saveLocked(ctx)
}

// SetDetailTag assigns entry to a line item; an empty entry removes it.
func (s *Service) SetDetailTag(ctx context.Context, provider domain.Provider, service, detail string, entry domain.TagEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Tags.SetDetail(provider, service, detail, entry)
	return s.saveLocked(ctx)
}

// BulkTag applies entry to, or clears, every key of sel and reports how
// many keys were written.
func (s *Service) BulkTag(ctx context.Context, provider domain.Provider, sel tags.Selection, entry domain.TagEntry, clear bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if clear {
		n = s.state.Tags.ClearSelection(provider, sel)
	} else {
		n = s.state.Tags.ApplySelection(provider, sel, entry)
	}
	return n, s.saveLocked(ctx)
}

// TagView is every assignment of one provider.
type TagView struct {
	Provider    domain.Provider                       `json:"provider"`
	Services    map[string]domain.TagEntry            `json:"services"`
	Details     map[string]map[string]domain.TagEntry `json:"details"`
	ProductApps []string                              `json:"product_apps"`
}

// Tags returns the assignments of provider.
func (s *Service) Tags(provider domain.Provider) TagView {
	services, details := s.state.Tags.Snapshot()
	view := TagView{
		Provider:    provider,
		Services:    services[provider],
		Details:     details[provider],
		ProductApps: s.state.Tags.ProductApps(provider),
	}
	if view.Services == nil {
		view.Services = map[string]domain.TagEntry{}
	}
	if view.Details == nil {
		view.Details = map[string]map[string]domain.TagEntry{}
	}
	if view.ProductApps == nil {
		view.ProductApps = []string{}
	}
	return view
}
