package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/cost-dashboard/internal/gcs"
)

// Re-export interface from shared package
type StorageService = gcs.StorageService

// GCSStorageService is the concrete implementation of StorageService
// that interacts with Google Cloud Storage through one shared client.
type GCSStorageService struct {
	client *storage.Client
}

var _ StorageService = (*GCSStorageService)(nil)

// NewGCSStorageService creates a storage service using Application Default Credentials.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the underlying client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ReadObject delegates to ReadObjectWithClient.
func (s *GCSStorageService) ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	return ReadObjectWithClient(ctx, s.client, bucketName, objectName)
}

// WriteObject delegates to WriteObjectWithClient.
func (s *GCSStorageService) WriteObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	return WriteObjectWithClient(ctx, s.client, bucketName, objectName, data, contentType)
}

// ListPrefixes delegates to ListPrefixesWithClient.
func (s *GCSStorageService) ListPrefixes(ctx context.Context, bucketName, prefix string) ([]string, error) {
	return ListPrefixesWithClient(ctx, s.client, bucketName, prefix)
}

// FetchFromGCS delegates to FetchFromGCSWithClient.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCSWithClient(ctx, s.client, gcsURI)
}
