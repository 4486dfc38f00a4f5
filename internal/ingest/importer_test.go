package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/buckets"
	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	provider   domain.Provider
	outcome    string
	rows       int
	duplicates int
	rerouted   bool
}

type mockRecorder struct {
	mu  sync.Mutex
	obs []observation
}

func (m *mockRecorder) ObserveFile(provider domain.Provider, outcome string, rows, duplicates int, rerouted bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{provider, outcome, rows, duplicates, rerouted})
}

func newTestImporter(rec Recorder) (*Importer, *buckets.Store) {
	store := buckets.NewStore()
	clock := func() time.Time { return importedAt }
	return NewImporter(store, WithRecorder(rec), WithClock(clock)), store
}

func TestImportBatch_ScenarioA(t *testing.T) {
	im, _ := newTestImporter(nil)

	summary, err := im.ImportBatch(context.Background(), domain.ProviderAWS, []File{{Name: "a.csv", Content: []byte(scenarioA)}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FilesImported)
	assert.Equal(t, []BucketRef{{Provider: domain.ProviderAWS, Month: domain.UnknownMonth}}, summary.BucketsTouched)
	assert.Equal(t, 2, summary.RowsMerged)
	require.NotNil(t, summary.Dataset)
	assert.InDelta(t, 15.75, summary.Dataset.TotalCost, 1e-9)
	assert.Equal(t, 2, summary.Dataset.ServiceCount)
	ec2, ok := summary.Dataset.ServiceByName("AmazonEC2")
	require.True(t, ok)
	assert.InDelta(t, 79.37, ec2.Share, 0.01)
	assert.NotEmpty(t, summary.BatchID)
	assert.Contains(t, summary.String(), "Imported 1 file(s) into 1 month bucket(s): 2 row(s) merged")
}

func TestImportBatch_ScenarioB_ReimportIsIdempotent(t *testing.T) {
	rec := &mockRecorder{}
	im, store := newTestImporter(rec)
	ctx := context.Background()
	file := File{Name: "a.csv", Content: []byte(scenarioA)}

	_, err := im.ImportBatch(ctx, domain.ProviderAWS, []File{file}, Options{})
	require.NoError(t, err)
	summary, err := im.ImportBatch(ctx, domain.ProviderAWS, []File{file}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, 0, summary.RowsMerged)
	assert.Empty(t, summary.BucketsTouched)

	ds, err := store.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount)
	assert.InDelta(t, 15.75, ds.TotalCost, 1e-9)

	require.Len(t, rec.obs, 2)
	assert.Equal(t, OutcomeImported, rec.obs[0].outcome)
	assert.Equal(t, OutcomeDuplicate, rec.obs[1].outcome)
}

func TestImportBatch_CRLFCopyIsStillADuplicate(t *testing.T) {
	im, store := newTestImporter(nil)
	ctx := context.Background()
	crlf := "LineItem/ProductCode,LineItem/UnblendedCost,LineItem/UsageType\r\nAmazonEC2,12.50,BoxUsage\r\nAmazonS3,3.25,TimedStorage-ByteHrs\r\n"

	_, err := im.ImportBatch(ctx, domain.ProviderAWS, []File{{Name: "a.csv", Content: []byte(scenarioA)}}, Options{})
	require.NoError(t, err)
	_, err = im.ImportBatch(ctx, domain.ProviderAWS, []File{{Name: "a-windows.csv", Content: []byte(crlf)}}, Options{})
	require.NoError(t, err)

	ds, err := store.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.RowCount)
}

func TestImportFile_ScenarioC_ProviderMismatch(t *testing.T) {
	im, store := newTestImporter(nil)

	_, err := im.ImportFile(context.Background(), domain.ProviderAzure, File{Name: "aws.csv", Content: []byte(scenarioA)}, Options{})

	var mismatch *ProviderMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, domain.ProviderAWS, mismatch.Detected)
	assert.Equal(t, domain.ProviderAzure, mismatch.Expected)
	assert.Contains(t, err.Error(), "AWS")
	assert.Contains(t, err.Error(), "Azure")
	assert.Empty(t, store.Providers())
}

func TestImportBatch_AutoRoute(t *testing.T) {
	rec := &mockRecorder{}
	im, store := newTestImporter(rec)

	summary, err := im.ImportBatch(context.Background(), domain.ProviderAzure, []File{{Name: "aws.csv", Content: []byte(scenarioA)}}, Options{AutoRoute: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Rerouted)
	assert.Equal(t, domain.ProviderAWS, summary.Files[0].Provider)
	assert.Contains(t, summary.String(), "1 file(s) auto-routed")
	assert.Nil(t, summary.Dataset)

	aws, err := store.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.InDelta(t, 15.75, aws.TotalCost, 1e-9)
	assert.True(t, rec.obs[0].rerouted)
}

func TestImportBatch_RerouteKeepsBucketsPerProvider(t *testing.T) {
	im, _ := newTestImporter(nil)
	files := []File{
		{Name: "azure.csv", Content: []byte("Date,MeterCategory,CostInBillingCurrency\n2024-01-01,VM,3\n")},
		{Name: "aws.csv", Content: []byte("lineItem/UsageStartDate,lineItem/ProductCode,lineItem/UnblendedCost\n" +
			"2024-01-05T00:00:00Z,AmazonEC2,1\n" +
			"2024-02-05T00:00:00Z,AmazonEC2,2\n")},
	}

	summary, err := im.ImportBatch(context.Background(), domain.ProviderAzure, files, Options{AutoRoute: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Rerouted)
	require.Len(t, summary.BucketsTouched, 3)
	assert.Equal(t, BucketRef{Provider: domain.ProviderAWS, Month: "2024-01"}, summary.BucketsTouched[0])
	assert.Equal(t, BucketRef{Provider: domain.ProviderAWS, Month: "2024-02"}, summary.BucketsTouched[1])
	assert.Equal(t, domain.ProviderAzure, summary.BucketsTouched[2].Provider)
	assert.Contains(t, summary.String(), "into 3 month bucket(s)")
}

func TestImportBatch_AmbiguousUsesDeclaredProvider(t *testing.T) {
	im, store := newTestImporter(nil)
	csv := "Name,Cost\nwidget,3\n"

	_, err := im.ImportBatch(context.Background(), domain.ProviderGCP, []File{{Name: "generic.csv", Content: []byte(csv)}}, Options{})
	require.NoError(t, err)

	ds, err := store.GetData(domain.ProviderGCP, "all", false)
	require.NoError(t, err)
	require.NotNil(t, ds)
	assert.InDelta(t, 3.0, ds.TotalCost, 1e-9)
}

func TestImportBatch_PartialSuccess(t *testing.T) {
	im, store := newTestImporter(nil)

	files := []File{
		{Name: "empty.csv", Content: []byte("LineItem/ProductCode,LineItem/UnblendedCost\n")},
		{Name: "good.csv", Content: []byte(scenarioA)},
		{Name: "azure.csv", Content: []byte("Date,MeterCategory,CostInBillingCurrency\n2024-01-01,VM,3\n")},
	}

	summary, err := im.ImportBatch(context.Background(), domain.ProviderAWS, files, Options{})
	require.Error(t, err)

	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Failures, 2)
	assert.Equal(t, "empty.csv", batch.Failures[0].Name)
	assert.Equal(t, "azure.csv", batch.Failures[1].Name)
	assert.Contains(t, err.Error(), "empty.csv: structural parse error")
	assert.Contains(t, err.Error(), ", azure.csv: provider mismatch")
	assert.True(t, IsFileError(err))

	var mismatch *ProviderMismatchError
	assert.True(t, errors.As(err, &mismatch))

	assert.Equal(t, 1, summary.FilesImported)
	assert.Len(t, summary.Failures, 2)
	ds, err := store.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.InDelta(t, 15.75, ds.TotalCost, 1e-9)
}

func TestImportBatch_MultiMonthSignatures(t *testing.T) {
	im, store := newTestImporter(nil)
	csv := "lineItem/UsageStartDate,lineItem/ProductCode,lineItem/UnblendedCost\n" +
		"2024-01-05T00:00:00Z,AmazonEC2,1\n" +
		"2024-02-05T00:00:00Z,AmazonEC2,2\n"

	summary, err := im.ImportBatch(context.Background(), domain.ProviderAWS, []File{{Name: "q1.csv", Content: []byte(csv)}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []BucketRef{
		{Provider: domain.ProviderAWS, Month: "2024-01"},
		{Provider: domain.ProviderAWS, Month: "2024-02"},
	}, summary.BucketsTouched)

	jan, err := store.GetData(domain.ProviderAWS, "2024-01", false)
	require.NoError(t, err)
	feb, err := store.GetData(domain.ProviderAWS, "2024-02", false)
	require.NoError(t, err)

	sig := summary.Files[0].Signature
	assert.Equal(t, []string{MonthSignature(sig, "2024-01")}, jan.SourceSignatures)
	assert.Equal(t, []string{MonthSignature(sig, "2024-02")}, feb.SourceSignatures)
}
