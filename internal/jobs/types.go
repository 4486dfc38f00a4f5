package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/ingest"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImport represents a billing CSV import job.
	JobTypeImport JobType = "import"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every file of the job was imported.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusPartial indicates some files were imported and some failed.
	JobStatusPartial JobStatus = "partial"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
)

// ImportJob represents one batch of billing files to import.
type ImportJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Provider is the declared provider of the batch.
	Provider domain.Provider `json:"provider"`

	AutoRoute bool   `json:"auto_route"`
	Account   string `json:"account,omitempty"`

	// FileNames lists the uploaded files in order.
	FileNames []string `json:"file_names"`

	// Files carries the file contents until the job runs.
	Files []ingest.File `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Result is the import summary, set once the job ran.
	Result *JobResult `json:"result,omitempty"`
}

// JobResult is the part of an import summary kept with the job.
type JobResult struct {
	BatchID           string             `json:"batch_id"`
	Message           string             `json:"message"`
	FilesImported     int                `json:"files_imported"`
	BucketsTouched    []ingest.BucketRef `json:"buckets_touched"`
	RowsMerged        int                `json:"rows_merged"`
	DuplicatesSkipped int                `json:"duplicates_skipped"`
	Rerouted          int                `json:"rerouted"`
	SkippedRows       int                `json:"skipped_rows"`
	Failures          []string           `json:"failures,omitempty"`
}

// ResultFromSummary copies the reportable fields of s.
func ResultFromSummary(s *ingest.Summary) *JobResult {
	if s == nil {
		return nil
	}
	return &JobResult{
		BatchID:           s.BatchID,
		Message:           s.String(),
		FilesImported:     s.FilesImported,
		BucketsTouched:    append([]ingest.BucketRef(nil), s.BucketsTouched...),
		RowsMerged:        s.RowsMerged,
		DuplicatesSkipped: s.DuplicatesSkipped,
		Rerouted:          s.Rerouted,
		SkippedRows:       s.SkippedRows,
		Failures:          append([]string(nil), s.Failures...),
	}
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ImportJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ImportJob) GetType() JobType {
	return JobTypeImport
}

// GetStatus implements the Job interface.
func (j *ImportJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishImport publishes an import job.
	PublishImport(ctx context.Context, job *ImportJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one import job. It may set job.Result and job.Status
// to JobStatusPartial; a returned error marks the job failed. Jobs are not
// retried.
type JobHandler func(ctx context.Context, job *ImportJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ImportJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ImportJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Provider filters jobs by declared provider.
	Provider domain.Provider

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
