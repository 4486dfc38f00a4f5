package gcs

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("gcs: object not found")

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// ReadObject returns the bytes of bucket/object, or ErrObjectNotFound.
	ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error)

	// WriteObject replaces bucket/object with data.
	WriteObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error

	// ListPrefixes returns the immediate "directories" under prefix.
	ListPrefixes(ctx context.Context, bucketName, prefix string) ([]string, error)

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
