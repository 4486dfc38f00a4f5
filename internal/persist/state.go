package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/cost-dashboard/internal/buckets"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/tags"
)

// State is the engine state kept across runs.
type State struct {
	Buckets *buckets.Store
	Tags    *tags.Store
}

// NewState creates empty stores.
func NewState() *State {
	return &State{Buckets: buckets.NewStore(), Tags: tags.NewStore()}
}

// SaveState writes the bucket store and both tag maps. Writes are last
// write wins; a failed write leaves the in-memory state untouched.
func SaveState(ctx context.Context, kv KV, st *State) error {
	services, details := st.Tags.Snapshot()
	values := []struct {
		key string
		v   interface{}
	}{
		{KeyBuckets, st.Buckets.Snapshot()},
		{KeyTags, services},
		{KeyDetailTags, details},
	}

	for _, item := range values {
		data, err := json.Marshal(item.v)
		if err != nil {
			return fmt.Errorf("SaveState: encoding %s: %w", item.key, err)
		}
		if err := kv.Set(ctx, item.key, string(data)); err != nil {
			return fmt.Errorf("SaveState: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().Msg("Saved state")
	return nil
}

// LoadState reads saved state into new stores. Missing keys give empty stores.
func LoadState(ctx context.Context, kv KV) (*State, error) {
	var snap buckets.Snapshot
	if err := loadJSON(ctx, kv, KeyBuckets, &snap); err != nil {
		return nil, err
	}
	var services tags.ServiceTags
	if err := loadJSON(ctx, kv, KeyTags, &services); err != nil {
		return nil, err
	}
	var details tags.DetailTags
	if err := loadJSON(ctx, kv, KeyDetailTags, &details); err != nil {
		return nil, err
	}

	st := NewState()
	st.Buckets.Restore(snap)
	st.Tags.Restore(services, details)

	log := logger.FromContext(ctx)
	log.Debug().
		Int("providers", len(snap)).
		Msg("Loaded state")
	return st, nil
}

func loadJSON(ctx context.Context, kv KV, key string, v interface{}) error {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("LoadState: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("LoadState: decoding %s: %w", key, err)
	}
	return nil
}
