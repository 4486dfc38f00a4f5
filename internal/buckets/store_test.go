package buckets

import (
	"testing"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthDataset(provider domain.Provider, month, sig, service string, cost float64) *domain.Dataset {
	ds := &domain.Dataset{
		Provider:   provider,
		MonthKey:   month,
		ImportedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		RowCount:   1,
		Services: []domain.Service{{
			Provider: provider,
			Account:  "main",
			Name:     service,
			Cost:     cost,
			RowCount: 1,
			Details:  []domain.Detail{{Name: "usage", Cost: cost, RowCount: 1}},
		}},
		SourceFiles:        []string{sig + ".csv"},
		SourceSignatures:   []string{sig + "#" + month},
		SourceDatasetCount: 1,
	}
	ds.Recompute()
	return ds
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{in: "", want: Period{Kind: PeriodAll, Value: "all"}},
		{in: "ALL", want: Period{Kind: PeriodAll, Value: "all"}},
		{in: "year:2024", want: Period{Kind: PeriodYear, Value: "2024"}},
		{in: "2024-03", want: Period{Kind: PeriodMonth, Value: "2024-03"}},
		{in: "unknown", want: Period{Kind: PeriodMonth, Value: "unknown"}},
		{in: "2024-13", wantErr: true},
		{in: "year:24", wantErr: true},
		{in: "last-month", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePeriod(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_InsertCreatesThenMerges(t *testing.T) {
	s := NewStore()

	res := s.Insert(domain.ProviderAWS, "2024-01", monthDataset(domain.ProviderAWS, "2024-01", "a", "AmazonEC2", 10))
	assert.True(t, res.Created)
	assert.False(t, res.Duplicate)

	res = s.Insert(domain.ProviderAWS, "2024-01", monthDataset(domain.ProviderAWS, "2024-01", "b", "AmazonS3", 5))
	assert.False(t, res.Created)
	assert.False(t, res.Duplicate)
	assert.InDelta(t, 15.0, res.Dataset.TotalCost, 1e-9)
	assert.Equal(t, 2, res.Dataset.RowCount)
}

func TestStore_InsertIsIdempotent(t *testing.T) {
	s := NewStore()
	ds := monthDataset(domain.ProviderAWS, "2024-01", "a", "AmazonEC2", 10)

	s.Insert(domain.ProviderAWS, "2024-01", ds)
	res := s.Insert(domain.ProviderAWS, "2024-01", ds)

	assert.True(t, res.Duplicate)
	got, err := s.GetData(domain.ProviderAWS, "2024-01", false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RowCount)
	assert.InDelta(t, 10.0, got.TotalCost, 1e-9)
}

func TestStore_GetDataPeriods(t *testing.T) {
	s := NewStore()
	s.Insert(domain.ProviderAWS, "2023-12", monthDataset(domain.ProviderAWS, "2023-12", "dec", "AmazonEC2", 1))
	s.Insert(domain.ProviderAWS, "2024-01", monthDataset(domain.ProviderAWS, "2024-01", "jan", "AmazonEC2", 2))
	s.Insert(domain.ProviderAWS, "2024-02", monthDataset(domain.ProviderAWS, "2024-02", "feb", "AmazonS3", 4))

	all, err := s.GetData(domain.ProviderAWS, "all", false)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, all.TotalCost, 1e-9)
	assert.Equal(t, 2, all.ServiceCount)

	year, err := s.GetData(domain.ProviderAWS, "year:2024", false)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, year.TotalCost, 1e-9)

	month, err := s.GetData(domain.ProviderAWS, "2024-02", false)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, month.TotalCost, 1e-9)
	assert.Equal(t, "2024-02", month.MonthKey)

	missing, err := s.GetData(domain.ProviderAWS, "2024-05", false)
	require.NoError(t, err)
	assert.Nil(t, missing)

	fallback, err := s.GetData(domain.ProviderAWS, "2024-05", true)
	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.InDelta(t, 7.0, fallback.TotalCost, 1e-9)

	none, err := s.GetData(domain.ProviderGCP, "all", true)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.GetData(domain.ProviderAWS, "someday", false)
	assert.Error(t, err)
}

func TestStore_Unified(t *testing.T) {
	s := NewStore()
	s.Insert(domain.ProviderAWS, "2024-01", monthDataset(domain.ProviderAWS, "2024-01", "a", "Compute", 10))
	s.Insert(domain.ProviderGCP, "2024-01", monthDataset(domain.ProviderGCP, "2024-01", "g", "Compute", 30))

	got, err := s.GetData(domain.ProviderUnified, "2024-01", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.ProviderUnified, got.Provider)
	assert.InDelta(t, 40.0, got.TotalCost, 1e-9)
	require.Len(t, got.Services, 2)
	assert.Equal(t, domain.ProviderGCP, got.Services[0].Provider)
	assert.InDelta(t, 75.0, got.Services[0].Share, 1e-9)
	assert.Equal(t, domain.ProviderAWS, got.Services[1].Provider)

	assert.Equal(t, []string{"2024-01"}, s.Months(domain.ProviderUnified))
	assert.Equal(t, []domain.Provider{domain.ProviderAWS, domain.ProviderGCP}, s.Providers())
}

func TestStore_SnapshotRestoreAndClear(t *testing.T) {
	s := NewStore()
	s.Insert(domain.ProviderAWS, "", monthDataset(domain.ProviderAWS, "", "a", "AmazonEC2", 10))
	s.Insert(domain.ProviderAzure, "2024-01", monthDataset(domain.ProviderAzure, "2024-01", "z", "VM", 3))

	assert.Equal(t, []string{"unknown"}, s.Months(domain.ProviderAWS))

	snap := s.Snapshot()
	restored := NewStore()
	restored.Restore(snap)

	got, err := restored.GetData(domain.ProviderAzure, "all", false)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got.TotalCost, 1e-9)

	restored.ClearProvider(domain.ProviderAzure)
	assert.Equal(t, []domain.Provider{domain.ProviderAWS}, restored.Providers())

	restored.Clear()
	assert.Empty(t, restored.Providers())

	// the original store is untouched by changes to the restored copy
	assert.Len(t, s.Providers(), 2)
}
