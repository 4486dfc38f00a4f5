package ingest

import (
	"fmt"
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// StructuralParseError means a file cannot be read as a billing export at all.
type StructuralParseError struct {
	Reason string
}

func (e *StructuralParseError) Error() string {
	return "structural parse error: " + e.Reason
}

// ProviderMismatchError means detection confidently disagrees with the
// provider the caller declared for the file.
type ProviderMismatchError struct {
	Detected domain.Provider
	Expected domain.Provider
}

func (e *ProviderMismatchError) Error() string {
	return fmt.Sprintf("provider mismatch: file looks like %s but %s was expected",
		e.Detected.Label(), e.Expected.Label())
}

// FileError ties a failure to the file that caused it.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// BatchError collects the per-file failures of a batch import. Files that
// are not listed were committed.
type BatchError struct {
	Failures []*FileError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return strings.Join(parts, ", ")
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}
