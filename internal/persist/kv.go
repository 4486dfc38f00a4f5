// Package persist saves and loads engine state through an opaque key/value store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// State keys.
const (
	KeyBuckets    = "costdash.buckets.v1"
	KeyTags       = "costdash.tags.v1"
	KeyDetailTags = "costdash.detailTags.v1"
)

// ErrPersist marks failures of the storage backend.
var ErrPersist = errors.New("persist: storage failure")

// KV is the key/value boundary. Get reports false when key is absent.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Backend is a KV holding resources that must be released.
type Backend interface {
	KV
	Close() error
}

// ProfileLister is implemented by remote backends that keep state per profile.
type ProfileLister interface {
	ListProfiles(ctx context.Context) ([]string, error)
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersist, err)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
)

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "default"

// objectKey builds <prefix>/<profile>/<key>.json.
func objectKey(prefix, profile, key string) string {
	if profile == "" {
		profile = DefaultProfile
	}
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, profile, key+".json")
	return strings.Join(parts, "/")
}
