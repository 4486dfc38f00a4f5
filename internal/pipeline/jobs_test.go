package pipeline

import (
	"context"
	"testing"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/jobs"
	"github.com/dvloznov/cost-dashboard/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingJobObserver struct {
	statuses []string
}

func (r *recordingJobObserver) ObserveJob(status string) {
	r.statuses = append(r.statuses, status)
}

func TestImportJobHandler(t *testing.T) {
	bad := ingest.File{Name: "bad.csv", Content: []byte("header only\n")}

	tests := []struct {
		name       string
		files      []ingest.File
		wantErr    bool
		wantStatus jobs.JobStatus
		observed   string
	}{
		{
			name:     "all files imported",
			files:    []ingest.File{awsFile("a.csv")},
			observed: "completed",
		},
		{
			name:       "some files failed",
			files:      []ingest.File{awsFile("a.csv"), bad},
			wantStatus: jobs.JobStatusPartial,
			observed:   "partial",
		},
		{
			name:     "nothing imported",
			files:    []ingest.File{bad},
			wantErr:  true,
			observed: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingJobObserver{}
			svc := NewService(nil, persist.NewMemoryKV())
			handler := ImportJobHandler(svc, obs)

			job := &jobs.ImportJob{JobID: "job-1", Provider: domain.ProviderAWS, Files: tt.files}
			err := handler(context.Background(), job)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStatus, job.Status)
			assert.Equal(t, []string{tt.observed}, obs.statuses)
			require.NotNil(t, job.Result)
		})
	}
}
