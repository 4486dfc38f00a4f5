package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/rollup"
	"github.com/dvloznov/cost-dashboard/internal/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const awsExport = "LineItem/ProductCode,LineItem/UnblendedCost,LineItem/UsageType\n" +
	"AmazonEC2,12.50,BoxUsage\n" +
	"AmazonS3,3.25,TimedStorage-ByteHrs\n"

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, errors.New("not implemented")
}

type failingKV struct {
	persist.KV
}

func (failingKV) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

type countingObserver struct {
	failures int32
}

func (c *countingObserver) StateSaveFailed() { atomic.AddInt32(&c.failures, 1) }

func awsFile(name string) ingest.File {
	return ingest.File{Name: name, Content: []byte(awsExport)}
}

func TestServiceImportPersistsState(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	svc := NewService(nil, kv)

	summary, err := svc.Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("march.csv")}, ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesImported)

	reloaded, err := Load(ctx, kv)
	require.NoError(t, err)

	ds, err := reloaded.Dataset(domain.ProviderAWS, "", false)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.InDelta(t, 15.75, ds.TotalCost, 1e-6)
	assert.Equal(t, 2, ds.ServiceCount)
	assert.Equal(t, []domain.Provider{domain.ProviderAWS}, reloaded.Providers())
}

func TestLoadRefusesOtherSignatureScheme(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	_, err := NewService(nil, kv).Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("march.csv")}, ingest.Options{})
	require.NoError(t, err)

	_, err = Load(ctx, kv, WithImporterOptions(ingest.WithSigner(ingest.NewChecksumSigner())))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSignatureScheme))
	assert.Contains(t, err.Error(), `"sha256:"`)

	svc, err := Load(ctx, kv)
	require.NoError(t, err)
	summary, err := svc.Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("march.csv")}, ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DuplicatesSkipped)

	_, err = Load(ctx, persist.NewMemoryKV(), WithImporterOptions(ingest.WithSigner(ingest.NewChecksumSigner())))
	require.NoError(t, err)
}

func TestServiceImportRejectsUnified(t *testing.T) {
	svc := NewService(nil, nil)
	_, err := svc.Import(context.Background(), domain.ProviderUnified, []ingest.File{awsFile("a.csv")}, ingest.Options{})
	require.Error(t, err)
}

func TestServiceImportPartialFailure(t *testing.T) {
	svc := NewService(nil, persist.NewMemoryKV())

	files := []ingest.File{
		awsFile("good.csv"),
		{Name: "bad.csv", Content: []byte("only,a,header\n")},
	}
	summary, err := svc.Import(context.Background(), domain.ProviderAWS, files, ingest.Options{})
	require.Error(t, err)
	var batchErr *ingest.BatchError
	require.True(t, errors.As(err, &batchErr))
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.FilesImported)
	assert.Len(t, summary.Failures, 1)
}

func TestServiceSaveFailureKeepsState(t *testing.T) {
	obs := &countingObserver{}
	svc := NewService(nil, failingKV{KV: persist.NewMemoryKV()}, WithSaveObserver(obs))

	summary, err := svc.Import(context.Background(), domain.ProviderAWS, []ingest.File{awsFile("a.csv")}, ingest.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, summary)
	assert.Equal(t, int32(1), atomic.LoadInt32(&obs.failures))

	ds, err := svc.Dataset(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.InDelta(t, 15.75, ds.TotalCost, 1e-6)
}

func TestServiceImportSources(t *testing.T) {
	dir := t.TempDir()
	local := dir + "/local.csv"
	require.NoError(t, os.WriteFile(local, []byte("LineItem/ProductCode,LineItem/UnblendedCost\nAWSLambda,1.00\n"), 0o600))

	var fetched []string
	storage := &MockStorageService{
		FetchFromGCSFunc: func(ctx context.Context, gcsURI string) ([]byte, error) {
			fetched = append(fetched, gcsURI)
			return []byte(awsExport), nil
		},
	}
	svc := NewService(nil, persist.NewMemoryKV(), WithStorage(storage))

	summary, err := svc.ImportSources(context.Background(), domain.ProviderAWS,
		[]string{"gs://billing/exports/march.csv", local}, os.ReadFile, ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.FilesImported)
	assert.Equal(t, []string{"gs://billing/exports/march.csv"}, fetched)

	names := make([]string, 0, len(summary.Files))
	for _, f := range summary.Files {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"march.csv", "local.csv"}, names)
}

func TestServiceImportSourcesWithoutStorage(t *testing.T) {
	svc := NewService(nil, nil)
	_, err := svc.ImportSources(context.Background(), domain.ProviderAWS, []string{"gs://b/o.csv"}, os.ReadFile, ingest.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configured")
}

func TestServiceTaggingAndRollup(t *testing.T) {
	ctx := context.Background()
	kv := persist.NewMemoryKV()
	svc := NewService(nil, kv)
	_, err := svc.Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("a.csv")}, ingest.Options{})
	require.NoError(t, err)

	require.NoError(t, svc.SetServiceTag(ctx, domain.ProviderAWS, "AmazonEC2", domain.TagEntry{ProductApp: "Checkout"}))

	tests := []struct {
		name     string
		filter   string
		services []string
		total    float64
	}{
		{name: "no filter", filter: "", services: []string{"AmazonEC2", "AmazonS3"}, total: 15.75},
		{name: "checkout", filter: "checkout", services: []string{"AmazonEC2"}, total: 12.50},
		{name: "untagged", filter: rollup.UntaggedFilter, services: []string{"AmazonS3"}, total: 3.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := svc.Rollup(domain.ProviderAWS, "all", false, rollup.Query{FilterProductApp: tt.filter})
			require.NoError(t, err)
			var names []string
			for _, s := range res.Services {
				names = append(names, s.Name)
			}
			assert.ElementsMatch(t, tt.services, names)
			assert.InDelta(t, tt.total, res.TotalCost, 1e-6)
		})
	}

	view := svc.Tags(domain.ProviderAWS)
	assert.Equal(t, []string{"Checkout"}, view.ProductApps)
	assert.Equal(t, "Checkout", view.Services["AmazonEC2"].ProductApp)

	reloaded, err := Load(ctx, kv)
	require.NoError(t, err)
	entry, ok := reloaded.State().Tags.Service(domain.ProviderAWS, "AmazonEC2")
	require.True(t, ok)
	assert.Equal(t, "Checkout", entry.ProductApp)
}

func TestServiceBulkTag(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, persist.NewMemoryKV())

	sel := tags.NewSelection(
		tags.Key{Service: "AmazonEC2"},
		tags.Key{Service: "AmazonS3", Detail: "TimedStorage-ByteHrs"},
	)
	n, err := svc.BulkTag(ctx, domain.ProviderAWS, sel, domain.TagEntry{ProductApp: "Search", Tags: []string{"prod"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	view := svc.Tags(domain.ProviderAWS)
	assert.Equal(t, "Search", view.Services["AmazonEC2"].ProductApp)
	assert.Equal(t, "Search", view.Details["AmazonS3"]["TimedStorage-ByteHrs"].ProductApp)

	n, err = svc.BulkTag(ctx, domain.ProviderAWS, sel, domain.TagEntry{}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	view = svc.Tags(domain.ProviderAWS)
	assert.Empty(t, view.Services)
	assert.Empty(t, view.ProductApps)
}

func TestServiceClear(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewFromConfig(&buf, "info", logger.FormatJSON)
	require.NoError(t, err)
	ctx := logger.WithContext(context.Background(), log)

	svc := NewService(nil, persist.NewMemoryKV())
	_, err = svc.Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("a.csv")}, ingest.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, svc.Months(domain.ProviderAWS))

	require.NoError(t, svc.Clear(ctx, domain.ProviderAWS))
	assert.Empty(t, svc.Months(domain.ProviderAWS))
	assert.Contains(t, buf.String(), `"message":"Cleared provider data"`)

	ds, err := svc.Dataset(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.Nil(t, ds)
}

func TestServiceExportRows(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, nil)
	_, err := svc.Import(ctx, domain.ProviderAWS, []ingest.File{awsFile("a.csv")}, ingest.Options{})
	require.NoError(t, err)

	rows, err := svc.ExportRows(domain.ProviderAWS, "all", false, "")
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	_, err = svc.Dataset(domain.ProviderAWS, "2024-13", false)
	require.Error(t, err)
}
