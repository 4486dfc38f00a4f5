package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/export"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/dvloznov/cost-dashboard/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	ExportFunc func(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error)
}

func (m *mockSink) Export(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error) {
	return m.ExportFunc(ctx, provider, period, rows)
}

func seedState(t *testing.T) persist.KV {
	t.Helper()
	kv := persist.NewMemoryKV()
	svc := pipeline.NewService(nil, kv)

	aws := "LineItem/ProductCode,LineItem/UnblendedCost,LineItem/UsageStartDate\n" +
		"AmazonEC2,12.50,2024-03-04T00:00:00Z\n" +
		"AmazonS3,3.25,2024-03-05T00:00:00Z\n"
	_, err := svc.Import(context.Background(), domain.ProviderAWS,
		[]ingest.File{{Name: "aws.csv", Content: []byte(aws)}}, ingest.Options{})
	require.NoError(t, err)
	return kv
}

func TestExporterRun(t *testing.T) {
	kv := seedState(t)

	var periods []string
	var rowCount int
	sink := &mockSink{
		ExportFunc: func(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error) {
			periods = append(periods, period)
			rowCount += len(rows)
			return export.ExportResult{Provider: provider, Period: period, Rows: len(rows)}, nil
		},
	}

	e := &Exporter{
		KV:   kv,
		Sink: sink,
		Now:  func() time.Time { return time.Date(2024, 3, 20, 2, 0, 0, 0, time.UTC) },
	}
	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"2024-03"}, periods)
	assert.Greater(t, rowCount, 0)
}

func TestExporterRunMissingMonth(t *testing.T) {
	kv := seedState(t)
	called := false
	sink := &mockSink{
		ExportFunc: func(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error) {
			called = true
			return export.ExportResult{}, nil
		},
	}

	e := &Exporter{
		KV:   kv,
		Sink: sink,
		Now:  func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	}
	results, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestExporterRunSinkError(t *testing.T) {
	kv := seedState(t)
	sink := &mockSink{
		ExportFunc: func(ctx context.Context, provider, period string, rows []export.Row) (export.ExportResult, error) {
			return export.ExportResult{}, errors.New("quota exceeded")
		},
	}

	e := &Exporter{
		KV:   kv,
		Sink: sink,
		Now:  func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) },
	}
	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
