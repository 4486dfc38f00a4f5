package persist

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/gcs"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *State {
	st := NewState()
	ds := &domain.Dataset{
		Provider:         domain.ProviderAWS,
		MonthKey:         "2024-01",
		ImportedAt:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		SourceSignatures: []string{"sha256:abc#2024-01"},
		Services: []domain.Service{{
			Provider: domain.ProviderAWS, Account: "prod", Name: "AmazonEC2", Cost: 12.5, RowCount: 1,
			Details: []domain.Detail{{Name: "BoxUsage", Cost: 12.5, RowCount: 1}},
		}},
	}
	ds.Recompute()
	st.Buckets.Insert(domain.ProviderAWS, "2024-01", ds)
	st.Tags.SetService(domain.ProviderAWS, "AmazonEC2", domain.TagEntry{ProductApp: "Checkout"})
	st.Tags.SetDetail(domain.ProviderAWS, "AmazonEC2", "BoxUsage", domain.TagEntry{Tags: []string{"web", "prod"}})
	return st
}

func assertRoundTrip(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, SaveState(ctx, kv, sampleState()))

	loaded, err := LoadState(ctx, kv)
	require.NoError(t, err)

	ds, err := loaded.Buckets.GetData(domain.ProviderAWS, "2024-01", false)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.InDelta(t, 12.5, ds.TotalCost, 1e-9)
	assert.Equal(t, []string{"sha256:abc#2024-01"}, ds.SourceSignatures)

	entry, ok := loaded.Tags.Service(domain.ProviderAWS, "AmazonEC2")
	require.True(t, ok)
	assert.Equal(t, "Checkout", entry.ProductApp)

	detail, ok := loaded.Tags.Detail(domain.ProviderAWS, "AmazonEC2", "BoxUsage")
	require.True(t, ok)
	assert.Equal(t, []string{"web", "prod"}, detail.Tags)
}

func TestMemoryKV_RoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	assertRoundTrip(t, kv)

	for _, key := range []string{KeyBuckets, KeyTags, KeyDetailTags} {
		_, ok, err := kv.Get(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestSaveAndLoadState_LogToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewFromConfig(&buf, "debug", logger.FormatJSON)
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	kv := NewMemoryKV()
	require.NoError(t, SaveState(ctx, kv, sampleState()))
	_, err = LoadState(ctx, kv)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"message":"Saved state"`)
	assert.Contains(t, buf.String(), `"message":"Loaded state"`)
	assert.Contains(t, buf.String(), `"providers":1`)
}

func TestLoadState_Empty(t *testing.T) {
	st, err := LoadState(context.Background(), NewMemoryKV())
	require.NoError(t, err)
	assert.Empty(t, st.Buckets.Providers())
}

func TestLoadState_CorruptValue(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), KeyBuckets, "{not json"))

	_, err := LoadState(context.Background(), kv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyBuckets)
}

type failingKV struct{ err error }

func (f failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, persistErr("failingKV.Get", f.err)
}

func (f failingKV) Set(ctx context.Context, key, value string) error {
	return persistErr("failingKV.Set", f.err)
}

func TestSaveState_ErrorLeavesStateUntouched(t *testing.T) {
	st := sampleState()
	err := SaveState(context.Background(), failingKV{err: errors.New("disk full")}, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Contains(t, err.Error(), "disk full")

	ds, err := st.Buckets.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.NotNil(t, ds)
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	kv, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	assertRoundTrip(t, kv)
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err = reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "costdash/team-a/costdash.tags.v1.json", objectKey("/costdash/", "team-a", KeyTags))
	assert.Equal(t, "default/k.json", objectKey("", "", "k"))
}

type mockStorageService struct {
	objects          map[string][]byte
	ListPrefixesFunc func(ctx context.Context, bucketName, prefix string) ([]string, error)
}

func (m *mockStorageService) ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	data, ok := m.objects[bucketName+"/"+objectName]
	if !ok {
		return nil, gcs.ErrObjectNotFound
	}
	return data, nil
}

func (m *mockStorageService) WriteObject(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	m.objects[bucketName+"/"+objectName] = data
	return nil
}

func (m *mockStorageService) ListPrefixes(ctx context.Context, bucketName, prefix string) ([]string, error) {
	if m.ListPrefixesFunc != nil {
		return m.ListPrefixesFunc(ctx, bucketName, prefix)
	}
	return nil, nil
}

func (m *mockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestGCSKV(t *testing.T) {
	svc := &mockStorageService{
		objects: make(map[string][]byte),
		ListPrefixesFunc: func(ctx context.Context, bucketName, prefix string) ([]string, error) {
			assert.Equal(t, "state", bucketName)
			assert.Equal(t, "costdash", prefix)
			return []string{"team-b", "team-a"}, nil
		},
	}
	kv := NewGCSKV(svc, "state", "costdash", "team-a")

	assertRoundTrip(t, kv)
	_, ok := svc.objects["state/costdash/team-a/costdash.buckets.v1.json"]
	assert.True(t, ok)

	profiles, err := kv.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "team-b"}, profiles)
}

type mockS3 struct {
	s3iface.S3API
	objects map[string]string
}

func (m *mockS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	v, ok := m.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(v))}, nil
}

func (m *mockS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error {
	fn(&s3.ListObjectsV2Output{
		CommonPrefixes: []*s3.CommonPrefix{
			{Prefix: aws.String(aws.StringValue(in.Prefix) + "prod/")},
			{Prefix: aws.String(aws.StringValue(in.Prefix) + "dev/")},
		},
	}, true)
	return nil
}

func TestS3KV(t *testing.T) {
	client := &mockS3{objects: make(map[string]string)}
	kv := NewS3KV(client, "state", "costdash", "")

	_, ok, err := kv.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assertRoundTrip(t, kv)
	_, ok = client.objects["state/costdash/default/costdash.tags.v1.json"]
	assert.True(t, ok)

	profiles, err := kv.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, profiles)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, b)

	b, err = Open(ctx, Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	_, err = Open(ctx, Options{Backend: BackendGCS})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)
}
