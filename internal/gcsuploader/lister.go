package gcsuploader

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ListPrefixesWithClient lists the immediate child prefixes under prefix,
// returned without the parent prefix or the trailing slash.
func ListPrefixesWithClient(ctx context.Context, client *storage.Client, bucketName, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := client.Bucket(bucketName).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listPrefixes: iter next: %w", err)
		}
		if attrs.Prefix == "" {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
		if name != "" {
			out = append(out, name)
		}
	}

	return out, nil
}
