package persist

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dvloznov/cost-dashboard/internal/gcs"
)

// GCSKV stores each key as gs://<bucket>/<prefix>/<profile>/<key>.json.
type GCSKV struct {
	storage gcs.StorageService
	closer  func() error
	bucket  string
	prefix  string
	profile string
}

// NewGCSKV creates a store over an existing storage service.
func NewGCSKV(storage gcs.StorageService, bucket, prefix, profile string) *GCSKV {
	if profile == "" {
		profile = DefaultProfile
	}
	return &GCSKV{storage: storage, bucket: bucket, prefix: prefix, profile: profile}
}

func (g *GCSKV) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := g.storage.ReadObject(ctx, g.bucket, objectKey(g.prefix, g.profile, key))
	if errors.Is(err, gcs.ErrObjectNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistErr(fmt.Sprintf("GCSKV.Get: %s", key), err)
	}
	return string(data), true, nil
}

func (g *GCSKV) Set(ctx context.Context, key, value string) error {
	err := g.storage.WriteObject(ctx, g.bucket, objectKey(g.prefix, g.profile, key), []byte(value), "application/json")
	if err != nil {
		return persistErr(fmt.Sprintf("GCSKV.Set: %s", key), err)
	}
	return nil
}

// ListProfiles returns the profiles that have state under the prefix.
func (g *GCSKV) ListProfiles(ctx context.Context) ([]string, error) {
	profiles, err := g.storage.ListPrefixes(ctx, g.bucket, g.prefix)
	if err != nil {
		return nil, persistErr("GCSKV.ListProfiles", err)
	}
	sort.Strings(profiles)
	return profiles, nil
}

func (g *GCSKV) Close() error {
	if g.closer != nil {
		return g.closer()
	}
	return nil
}
