package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/cost-dashboard/internal/ingest"
	"github.com/dvloznov/cost-dashboard/internal/jobs"
	"github.com/dvloznov/cost-dashboard/internal/logger"
)

// JobObserver is told the final status of each import job.
type JobObserver interface {
	ObserveJob(status string)
}

// ImportJobHandler returns the queue handler that runs import jobs through
// svc. A batch where some files failed marks the job partial; a batch where
// nothing was imported fails it.
func ImportJobHandler(svc *Service, observer JobObserver) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ImportJob) error {
		log := logger.FromContext(ctx)
		log.Info().Int("files", len(job.Files)).Msg("Processing import job")

		opts := ingest.Options{AutoRoute: job.AutoRoute, Account: job.Account}
		summary, err := svc.Import(ctx, job.Provider, job.Files, opts)
		job.Result = jobs.ResultFromSummary(summary)

		status := jobs.JobStatusCompleted
		defer func() {
			if observer != nil {
				observer.ObserveJob(string(status))
			}
		}()

		var batchErr *ingest.BatchError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &batchErr) && summary != nil && summary.FilesImported > 0:
			status = jobs.JobStatusPartial
			job.Status = jobs.JobStatusPartial
			job.Error = err.Error()
			return nil
		default:
			status = jobs.JobStatusFailed
			return fmt.Errorf("ImportJobHandler: %w", err)
		}
	}
}
