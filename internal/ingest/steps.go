package ingest

import (
	"context"
	"time"

	"github.com/dvloznov/cost-dashboard/internal/domain"
	"github.com/dvloznov/cost-dashboard/internal/logger"
)

// Step is a single stage of importing one file.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *State) error
}

// State holds what the steps of one file import share.
type State struct {
	File     File
	Expected domain.Provider
	Options  Options
	Now      time.Time

	Text       string
	Rows       [][]string
	Detection  Detection
	Provider   domain.Provider
	Rerouted   bool
	Normalized *Normalized
	Signature  string
	Result     FileResult
}

// DecodeStep converts the uploaded bytes to text.
type DecodeStep struct{}

func (s *DecodeStep) Name() string { return "decode" }

func (s *DecodeStep) Execute(ctx context.Context, state *State) error {
	text, err := DecodeText(state.File.Content)
	if err != nil {
		return err
	}
	state.Text = text
	return nil
}

// TokenizeStep splits the text into rows and rejects files without data.
type TokenizeStep struct{}

func (s *TokenizeStep) Name() string { return "tokenize" }

func (s *TokenizeStep) Execute(ctx context.Context, state *State) error {
	rows := nonBlankRows(Tokenize(state.Text))
	if len(rows) < 2 {
		return &StructuralParseError{Reason: "need a header row and at least one data row"}
	}
	state.Rows = rows
	return nil
}

// DetectStep decides which provider schema the file is read with.
type DetectStep struct{}

func (s *DetectStep) Name() string { return "detect" }

func (s *DetectStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	state.Detection = Detect(state.Rows[0])
	state.Provider = state.Expected

	detected := state.Detection.Provider
	if !state.Detection.Confident() || detected == state.Expected {
		return nil
	}
	if !state.Options.AutoRoute {
		return &ProviderMismatchError{Detected: detected, Expected: state.Expected}
	}

	log.Info().
		Str("file", state.File.Name).
		Str("expected", string(state.Expected)).
		Str("detected", string(detected)).
		Msg("Rerouting file to detected provider")
	state.Provider = detected
	state.Rerouted = true
	return nil
}

// NormalizeStep aggregates the rows into all-time and monthly datasets.
type NormalizeStep struct{}

func (s *NormalizeStep) Name() string { return "normalize" }

func (s *NormalizeStep) Execute(ctx context.Context, state *State) error {
	n, err := Normalize(NormalizeInput{
		Provider:   state.Provider,
		FileName:   state.File.Name,
		Account:    state.Options.Account,
		Rows:       state.Rows,
		Matrix:     state.Detection.Matrix && state.Provider == domain.ProviderAWS,
		ImportedAt: state.Now,
	})
	if err != nil {
		return err
	}
	state.Normalized = n
	return nil
}

// SignStep stamps every dataset with its content signature.
type SignStep struct {
	Signer *Signer
}

func (s *SignStep) Name() string { return "sign" }

func (s *SignStep) Execute(ctx context.Context, state *State) error {
	sig := s.Signer.Sign(state.Provider, state.Text)
	state.Signature = sig

	state.Normalized.All.SourceSignatures = []string{sig}
	for month, ds := range state.Normalized.Months {
		ds.SourceSignatures = []string{MonthSignature(sig, month)}
	}
	return nil
}

// MergeStep folds the monthly datasets into the bucket store.
type MergeStep struct {
	Store BucketStore
}

func (s *MergeStep) Name() string { return "merge" }

func (s *MergeStep) Execute(ctx context.Context, state *State) error {
	log := logger.FromContext(ctx)

	res := FileResult{
		Name:        state.File.Name,
		Provider:    state.Provider,
		Rerouted:    state.Rerouted,
		Signature:   state.Signature,
		SkippedRows: state.Normalized.Skipped,
	}

	for _, month := range state.Normalized.MonthKeys() {
		ds := state.Normalized.Months[month]
		ins := s.Store.Insert(state.Provider, month, ds)
		if ins.Duplicate {
			res.Duplicates++
			log.Debug().
				Str("file", state.File.Name).
				Str("month", month).
				Msg("Month already imported, skipping")
			continue
		}
		res.Months = append(res.Months, month)
		res.RowsMerged += ds.RowCount
	}

	state.Result = res
	return nil
}
