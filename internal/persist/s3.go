package persist

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3KV stores each key as s3://<bucket>/<prefix>/<profile>/<key>.json.
type S3KV struct {
	client  s3iface.S3API
	bucket  string
	prefix  string
	profile string
}

// NewS3KV creates a store over an S3 client.
func NewS3KV(client s3iface.S3API, bucket, prefix, profile string) *S3KV {
	if profile == "" {
		profile = DefaultProfile
	}
	return &S3KV{client: client, bucket: bucket, prefix: prefix, profile: profile}
}

func (s *S3KV) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, s.profile, key)),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return "", false, nil
		}
		return "", false, persistErr(fmt.Sprintf("S3KV.Get: %s", key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, persistErr(fmt.Sprintf("S3KV.Get: reading %s", key), err)
	}
	return string(data), true, nil
}

func (s *S3KV) Set(ctx context.Context, key, value string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(s.prefix, s.profile, key)),
		Body:        strings.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return persistErr(fmt.Sprintf("S3KV.Set: %s", key), err)
	}
	return nil
}

// ListProfiles returns the profiles that have state under the prefix.
func (s *S3KV) ListProfiles(ctx context.Context) ([]string, error) {
	prefix := strings.Trim(s.prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	var profiles []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/")
			if name != "" {
				profiles = append(profiles, name)
			}
		}
		return true
	})
	if err != nil {
		return nil, persistErr("S3KV.ListProfiles", err)
	}
	sort.Strings(profiles)
	return profiles, nil
}

func (s *S3KV) Close() error { return nil }
