package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/dvloznov/cost-dashboard/internal/ingest"

// File is one uploaded billing export.
type File struct {
	Name    string
	Content []byte
}

// Options tune how a batch is imported.
type Options struct {
	// AutoRoute imports a file under the detected provider instead of
	// rejecting it when detection disagrees with the declared provider.
	AutoRoute bool
	// Account overrides the account label derived from the file.
	Account string
}

// FileResult is what one successfully processed file contributed.
type FileResult struct {
	Name        string          `json:"name"`
	Provider    domain.Provider `json:"provider"`
	Rerouted    bool            `json:"rerouted,omitempty"`
	Signature   string          `json:"signature"`
	Months      []string        `json:"months"`
	RowsMerged  int             `json:"rows_merged"`
	Duplicates  int             `json:"duplicates"`
	SkippedRows int             `json:"skipped_rows"`
}

// Summary reports the outcome of a batch import.
type Summary struct {
	BatchID           string          `json:"batch_id"`
	Provider          domain.Provider `json:"provider"`
	FilesImported     int             `json:"files_imported"`
	BucketsTouched    []BucketRef     `json:"buckets_touched"`
	RowsMerged        int             `json:"rows_merged"`
	DuplicatesSkipped int             `json:"duplicates_skipped"`
	Rerouted          int             `json:"rerouted"`
	SkippedRows       int             `json:"skipped_rows"`
	Files             []FileResult    `json:"files"`
	Failures          []string        `json:"failures,omitempty"`
	Dataset           *domain.Dataset `json:"dataset,omitempty"`
}

// BucketRef names one month bucket of one provider. A rerouted file touches
// buckets of its detected provider.
type BucketRef struct {
	Provider domain.Provider `json:"provider"`
	Month    string          `json:"month"`
}

// String renders the summary for people.
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d file(s) into %d month bucket(s): %d row(s) merged, %d duplicate(s) skipped",
		s.FilesImported, len(s.BucketsTouched), s.RowsMerged, s.DuplicatesSkipped)
	if s.Rerouted > 0 {
		fmt.Fprintf(&b, ", %d file(s) auto-routed to the detected provider", s.Rerouted)
	}
	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "; %d file(s) failed", len(s.Failures))
	}
	return b.String()
}

// Importer runs files through the import steps, one at a time.
type Importer struct {
	store    BucketStore
	signer   *Signer
	recorder Recorder
	now      func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithSigner replaces the default SHA-256 signer.
func WithSigner(s *Signer) Option {
	return func(im *Importer) { im.signer = s }
}

// WithRecorder reports per-file outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(im *Importer) {
		if r != nil {
			im.recorder = r
		}
	}
}

// WithClock overrides the import timestamp source.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// NewImporter creates an importer writing into store.
func NewImporter(store BucketStore, opts ...Option) *Importer {
	im := &Importer{
		store:    store,
		signer:   NewSigner(),
		recorder: noopRecorder{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(im)
	}
	return im
}

// SignaturePrefix is the scheme marker of the signatures im produces.
func (im *Importer) SignaturePrefix() string {
	return im.signer.Prefix()
}

func (im *Importer) steps() []Step {
	return []Step{
		&DecodeStep{},
		&TokenizeStep{},
		&DetectStep{},
		&NormalizeStep{},
		&SignStep{Signer: im.signer},
		&MergeStep{Store: im.store},
	}
}

// ImportFile imports a single file declared as expected.
func (im *Importer) ImportFile(ctx context.Context, expected domain.Provider, file File, opts Options) (FileResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingest.ImportFile")
	span.SetAttributes(
		attribute.String("file", file.Name),
		attribute.String("expected_provider", string(expected)),
		attribute.Int("bytes", len(file.Content)),
	)
	defer span.End()

	state := &State{
		File:     file,
		Expected: expected,
		Options:  opts,
		Now:      im.now(),
	}

	for _, step := range im.steps() {
		if err := runStep(ctx, step, state); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			im.recorder.ObserveFile(expected, OutcomeFailed, 0, 0, false, time.Since(start))
			log.Warn().
				Err(err).
				Str("file", file.Name).
				Str("step", step.Name()).
				Msg("File import failed")
			return FileResult{}, err
		}
	}

	res := state.Result
	outcome := OutcomeImported
	if len(res.Months) == 0 && res.Duplicates > 0 {
		outcome = OutcomeDuplicate
	}
	im.recorder.ObserveFile(res.Provider, outcome, res.RowsMerged, res.Duplicates, res.Rerouted, time.Since(start))

	log.Info().
		Str("file", file.Name).
		Str("provider", string(res.Provider)).
		Strs("months", res.Months).
		Int("rows", res.RowsMerged).
		Int("duplicates", res.Duplicates).
		Int("skipped_rows", res.SkippedRows).
		Msg("File imported")

	return res, nil
}

func runStep(ctx context.Context, step Step, state *State) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ingest."+step.Name())
	defer span.End()

	if err := step.Execute(ctx, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// ImportBatch imports files in order, each to completion before the next.
// A failing file is recorded and the batch continues; every file that
// succeeded stays committed. The returned error is a *BatchError listing the
// failures, or nil.
func (im *Importer) ImportBatch(ctx context.Context, expected domain.Provider, files []File, opts Options) (*Summary, error) {
	log := logger.FromContext(ctx)

	summary := &Summary{
		BatchID:  uuid.New().String(),
		Provider: expected,
	}
	log = log.With().Str("batch_id", summary.BatchID).Logger()
	ctx = logger.WithContext(ctx, log)

	var batchErr BatchError
	touched := make(map[BucketRef]bool)

	for _, f := range files {
		res, err := im.ImportFile(ctx, expected, f, opts)
		if err != nil {
			fe := &FileError{Name: f.Name, Err: err}
			batchErr.Failures = append(batchErr.Failures, fe)
			summary.Failures = append(summary.Failures, fe.Error())
			continue
		}

		summary.FilesImported++
		summary.RowsMerged += res.RowsMerged
		summary.DuplicatesSkipped += res.Duplicates
		summary.SkippedRows += res.SkippedRows
		if res.Rerouted {
			summary.Rerouted++
		}
		for _, m := range res.Months {
			ref := BucketRef{Provider: res.Provider, Month: m}
			if !touched[ref] {
				touched[ref] = true
				summary.BucketsTouched = append(summary.BucketsTouched, ref)
			}
		}
		summary.Files = append(summary.Files, res)
	}
	sort.Slice(summary.BucketsTouched, func(i, j int) bool {
		a, b := summary.BucketsTouched[i], summary.BucketsTouched[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Month < b.Month
	})

	ds, err := im.store.GetData(expected, "all", false)
	if err != nil {
		return summary, fmt.Errorf("ImportBatch: reading dataset: %w", err)
	}
	summary.Dataset = ds

	log.Info().
		Int("files", len(files)).
		Int("imported", summary.FilesImported).
		Int("failed", len(batchErr.Failures)).
		Int("buckets", len(touched)).
		Msg(summary.String())

	if len(batchErr.Failures) > 0 {
		return summary, &batchErr
	}
	return summary, nil
}

// IsFileError reports whether err is one of the per-file error kinds that do
// not indicate a fault in the engine itself.
func IsFileError(err error) bool {
	var structural *StructuralParseError
	var mismatch *ProviderMismatchError
	var batch *BatchError
	return errors.As(err, &structural) || errors.As(err, &mismatch) || errors.As(err, &batch)
}
