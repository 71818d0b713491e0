// Package export runs the consolidation pipeline:
// validate, reload, merge.
//
// The stages are strictly sequential and there are no retries. A failed
// validation stops before anything is merged; a failed merge leaves no
// addressable artifact.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/signbank/internal/ids"
	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/merge"
	"github.com/roach88/signbank/internal/sample"
	"github.com/roach88/signbank/internal/validate"
)

// StatusSuccess is the status string of a successful export.
const StatusSuccess = "success"

// StatusError is recorded for failed runs.
const StatusError = "error"

// Source reloads samples after validation. The scanner satisfies it.
type Source interface {
	Scan(ctx context.Context, root string) ([]sample.Sample, error)
}

// Settings locates the corpus and fixes the dataset schema.
type Settings struct {
	SourceDir string
	OutputDir string
	ExpectedT int
	ExpectedD int
}

// Result is the body of a successful export.
type Result struct {
	Status           string           `json:"status"`
	Message          string           `json:"message"`
	ValidationReport *validate.Report `json:"validation_report"`
	Output           *merge.Result    `json:"output"`
}

// Run is one export attempt as handed to a Recorder.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Fix          bool
	Status       string
	ErrorKind    string
	Message      string
	TotalSamples int
	FixedCount   int
	Rewritten    []string
	Report       *validate.Report
	OutputDir    string
}

// Recorder persists export runs. The catalog satisfies it.
type Recorder interface {
	RecordExport(ctx context.Context, run Run) error
}

// Exporter sequences validation, reload and merge.
type Exporter struct {
	settings  Settings
	validator *validate.Validator
	source    Source
	merger    *merge.Merger
	recorder  Recorder
	ids       ids.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRecorder records every run, successful or not.
func WithRecorder(r Recorder) Option {
	return func(e *Exporter) { e.recorder = r }
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g ids.Generator) Option {
	return func(e *Exporter) { e.ids = g }
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Exporter) { e.logger = l }
}

// New creates an Exporter.
func New(settings Settings, validator *validate.Validator, source Source, merger *merge.Merger, opts ...Option) *Exporter {
	e := &Exporter{
		settings:  settings,
		validator: validator,
		source:    source,
		merger:    merger,
		ids:       ids.UUIDv7{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.New("export")
	}
	return e
}

// Export runs the pipeline once. Failures are always *Error.
func (e *Exporter) Export(ctx context.Context, fix bool) (*Result, error) {
	run := Run{
		ID:        e.ids.Generate(),
		StartedAt: e.now().UTC(),
		Fix:       fix,
		OutputDir: e.settings.OutputDir,
	}
	logger := e.logger.With("run_id", run.ID)
	logger.Info("export started", "source", e.settings.SourceDir, "fix", fix)

	res, err := e.export(ctx, fix, &run)

	run.FinishedAt = e.now().UTC()
	if err != nil {
		run.Status = StatusError
		if ee, ok := AsError(err); ok {
			run.ErrorKind = string(ee.Kind)
			run.Message = ee.Detail()
		} else {
			run.Message = err.Error()
		}
		logger.Error("export failed", "error", err)
	} else {
		run.Status = StatusSuccess
		run.Message = res.Message
		logger.Info("export finished", "samples", res.Output.TotalSamples, "fixed", res.ValidationReport.FixedCount)
	}
	e.record(ctx, logger, run)
	return res, err
}

func (e *Exporter) export(ctx context.Context, fix bool, run *Run) (*Result, error) {
	policy := validate.Policy{
		ExpectedT: e.settings.ExpectedT,
		ExpectedD: e.settings.ExpectedD,
		Fix:       fix,
	}
	report, rewritten, err := e.validator.Validate(ctx, e.settings.SourceDir, policy)
	if err != nil {
		return nil, &Error{Kind: KindMerge, Message: "validation could not run", Err: err}
	}
	run.Report = report
	run.FixedCount = report.FixedCount
	run.Rewritten = rewritten

	if !report.OK && report.FixedCount == 0 {
		return nil, &Error{Kind: KindValidation, Message: "Validation failed", Report: report}
	}
	if rejected := report.Rejected(); len(rejected) > 0 {
		e.logger.Warn("continuing with partially fixed corpus, rejected samples excluded", "fixed", report.FixedCount, "rejected", len(rejected))
	}

	samples, err := e.source.Scan(ctx, e.settings.SourceDir)
	if err != nil {
		return nil, &Error{Kind: KindMerge, Message: "reload failed", Err: err}
	}
	samples = dropRejected(samples, report)
	if len(samples) == 0 {
		return nil, &Error{Kind: KindNoSamples, Message: "No valid samples found."}
	}

	out, err := e.merger.Merge(ctx, samples, e.settings.OutputDir)
	if err != nil {
		return nil, &Error{Kind: KindMerge, Message: "merge failed", Err: err}
	}
	run.TotalSamples = out.TotalSamples

	return &Result{
		Status:           StatusSuccess,
		Message:          fmt.Sprintf("Exported %d samples.", out.TotalSamples),
		ValidationReport: report,
		Output:           out,
	}, nil
}

// dropRejected removes the samples the report rejected. Only samples that
// validated or were fixed reach the artifact.
func dropRejected(samples []sample.Sample, report *validate.Report) []sample.Sample {
	rejected := make(map[string]bool)
	for _, entry := range report.Rejected() {
		rejected[entry.Path] = true
	}
	if len(rejected) == 0 {
		return samples
	}
	kept := samples[:0:0]
	for _, s := range samples {
		if !rejected[s.Path] {
			kept = append(kept, s)
		}
	}
	return kept
}

func (e *Exporter) record(ctx context.Context, logger *slog.Logger, run Run) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordExport(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record export run", "error", err)
	}
}
