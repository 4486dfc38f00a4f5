package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFile(t *testing.T) {
	m := New()

	m.ObserveFile(domain.ProviderAWS, "imported", 10, 0, false, 20*time.Millisecond)
	m.ObserveFile(domain.ProviderAWS, "duplicate", 0, 2, false, time.Millisecond)
	m.ObserveFile(domain.ProviderGCP, "imported", 4, 1, true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("aws", "imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("aws", "duplicate")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.rowsMerged.WithLabelValues("aws")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.duplicates.WithLabelValues("aws")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rerouted.WithLabelValues("gcp")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.rerouted.WithLabelValues("aws")))
}

func TestObserveJobAndSaveErrors(t *testing.T) {
	m := New()
	m.ObserveJob("completed")
	m.ObserveJob("completed")
	m.ObserveJob("failed")
	m.StateSaveFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stateSaveErrors))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveFile(domain.ProviderAzure, "imported", 3, 0, false, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `costdash_import_files_total{outcome="imported",provider="azure"} 1`)
	assert.Contains(t, string(body), "costdash_import_file_duration_seconds_bucket")
}
