// Package validate checks stored samples against the dataset schema and,
// when asked, repairs length mismatches in place.
package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/sample"
)

// Source enumerates samples under a root. The scanner satisfies it.
type Source interface {
	Scan(ctx context.Context, root string) ([]sample.Sample, error)
}

// Rewriter persists a corrected sequence over an existing sample file.
// sample.FileStore satisfies it.
type Rewriter interface {
	Rewrite(path string, seq sample.Array) error
}

// Policy is the expected (T, D) schema plus the fix switch.
type Policy struct {
	ExpectedT int
	ExpectedD int
	Fix       bool
}

// Action is the outcome recorded for one sample.
type Action string

const (
	ActionOK       Action = "ok"
	ActionFixed    Action = "fixed"
	ActionRejected Action = "rejected"
)

// Reason texts for rejected samples.
const (
	ReasonFixDisabled = "length mismatch, fix disabled"
)

// Entry is the per-sample status line of a Report.
// Shape is the shape observed before any fix.
type Entry struct {
	Path   string `json:"path"`
	Shape  []int  `json:"shape"`
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Report is the result of one validation pass. It is built fresh per call
// and never modified after Validate returns.
type Report struct {
	OK         bool    `json:"ok"`
	FixedCount int     `json:"fixed_count"`
	Total      int     `json:"total"`
	Entries    []Entry `json:"entries"`
}

// Rejected returns the entries whose action is rejected.
func (r *Report) Rejected() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Action == ActionRejected {
			out = append(out, e)
		}
	}
	return out
}

// Validator classifies samples as ok, fixed or rejected.
type Validator struct {
	source   Source
	rewriter Rewriter
	logger   *slog.Logger
}

// New creates a Validator. rewriter may be nil when the validator is only
// ever run with Fix disabled; a fix attempt without one rejects the sample.
func New(source Source, rewriter Rewriter, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = logging.New("validate")
	}
	return &Validator{source: source, rewriter: rewriter, logger: logger}
}

// Validate checks every sample under root against policy.
//
// It returns the report and the paths rewritten by the fix pass, in scan
// order. Per-sample failures (including a failed rewrite) are recorded as
// rejected entries; only a Source failure aborts the pass.
func (v *Validator) Validate(ctx context.Context, root string, policy Policy) (*Report, []string, error) {
	if policy.ExpectedT <= 0 || policy.ExpectedD <= 0 {
		return nil, nil, fmt.Errorf("validate: expected shape must be positive, got (%d, %d)", policy.ExpectedT, policy.ExpectedD)
	}

	samples, err := v.source.Scan(ctx, root)
	if err != nil {
		return nil, nil, fmt.Errorf("validate: %w", err)
	}

	report := &Report{Total: len(samples), Entries: make([]Entry, 0, len(samples))}
	var rewritten []string
	for _, s := range samples {
		entry := v.check(s, policy)
		switch entry.Action {
		case ActionFixed:
			report.FixedCount++
			rewritten = append(rewritten, s.Path)
		case ActionRejected:
			v.logger.Info("sample rejected", "path", s.Path, "shape", s.Sequence.ShapeString(), "reason", entry.Reason)
		}
		report.Entries = append(report.Entries, entry)
	}
	report.OK = len(report.Rejected()) == 0

	v.logger.Info("validation complete",
		"root", root,
		"total", report.Total,
		"fixed", report.FixedCount,
		"ok", report.OK,
	)
	return report, rewritten, nil
}

func (v *Validator) check(s sample.Sample, policy Policy) Entry {
	entry := Entry{Path: s.Path, Shape: append([]int(nil), s.Sequence.Shape...)}

	t, d, ok := s.Sequence.Dims()
	switch {
	case !ok:
		entry.Action = ActionRejected
		entry.Reason = fmt.Sprintf("sequence must be rank-2, got shape %s", s.Sequence.ShapeString())
	case d != policy.ExpectedD:
		entry.Action = ActionRejected
		entry.Reason = fmt.Sprintf("feature dimension mismatch: got %d, expected %d", d, policy.ExpectedD)
	case t == policy.ExpectedT:
		entry.Action = ActionOK
	case !policy.Fix:
		entry.Action = ActionRejected
		entry.Reason = ReasonFixDisabled
	default:
		if err := v.fix(s, policy.ExpectedT); err != nil {
			entry.Action = ActionRejected
			entry.Reason = fmt.Sprintf("fix failed: %v", err)
			return entry
		}
		entry.Action = ActionFixed
		if t > policy.ExpectedT {
			entry.Reason = fmt.Sprintf("truncated from %d to %d frames", t, policy.ExpectedT)
		} else {
			entry.Reason = fmt.Sprintf("padded from %d to %d frames", t, policy.ExpectedT)
		}
	}
	return entry
}

func (v *Validator) fix(s sample.Sample, expectedT int) error {
	if v.rewriter == nil {
		return fmt.Errorf("no rewriter configured")
	}
	fitted, err := sample.Fit(s.Sequence, expectedT)
	if err != nil {
		return err
	}
	if err := v.rewriter.Rewrite(s.Path, fitted); err != nil {
		return err
	}
	v.logger.Debug("sample fixed", "path", s.Path, "from", s.Sequence.ShapeString(), "to", fitted.ShapeString())
	return nil
}
