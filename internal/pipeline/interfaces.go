package pipeline

import (
	"context"

	"github.com/dvloznov/cost-dashboard/internal/persist"
)

// StorageService fetches billing exports kept in Cloud Storage.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// StateStore is where engine state is saved after each mutation.
type StateStore = persist.KV

// SaveObserver is told about failed state writes.
type SaveObserver interface {
	StateSaveFailed()
}
