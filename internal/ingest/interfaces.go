package ingest

import (
	"time"

	"github.com/dvloznov/cost-dashboard/internal/buckets"
	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// BucketStore is the part of the monthly bucket store the importer writes to.
type BucketStore interface {
	Insert(provider domain.Provider, monthKey string, ds *domain.Dataset) buckets.InsertResult
	GetData(provider domain.Provider, period string, fallback bool) (*domain.Dataset, error)
}

// Recorder receives one observation per imported file.
type Recorder interface {
	ObserveFile(provider domain.Provider, outcome string, rows, duplicates int, rerouted bool, elapsed time.Duration)
}

// Outcomes reported to a Recorder.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

type noopRecorder struct{}

func (noopRecorder) ObserveFile(domain.Provider, string, int, int, bool, time.Duration) {}

var _ BucketStore = (*buckets.Store)(nil)
