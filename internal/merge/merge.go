// Package merge stacks validated samples into one contiguous artifact.
package merge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/signbank/internal/artifact"
	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/sample"
)

// Result describes a written artifact. Meta is exactly what meta.json holds.
type Result struct {
	artifact.Meta
	MetaPath  string `json:"meta_path"`
	IndexPath string `json:"index_path"`
}

// Merger writes the (N, T, D) features file, index.json and meta.json.
type Merger struct {
	logger *slog.Logger
}

// New creates a Merger. A nil logger uses the "merge" component logger.
func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = logging.New("merge")
	}
	return &Merger{logger: logger}
}

// Merge writes samples, in the given order, into outputDir.
//
// The target (T, D) is taken from the first sample; later samples with a
// different T are reconciled with sample.Fit. Empty input, a non-rank-2
// sample or a D mismatch fails before anything is created on disk.
//
// Any previous meta.json is removed before the features file is replaced,
// and the new meta.json is written last, so an interrupted merge never
// leaves a sidecar that describes the wrong features file.
// ctx only carries log attributes; a started merge is never abandoned.
func (m *Merger) Merge(ctx context.Context, samples []sample.Sample, outputDir string) (*Result, error) {
	t, d, err := checkShapes(samples)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("merge: create output dir: %w", err)
	}
	featuresPath := filepath.Join(outputDir, artifact.FeaturesFile)
	metaPath := filepath.Join(outputDir, artifact.MetaFile)
	indexPath := filepath.Join(outputDir, artifact.IndexFile)

	if err := os.Remove(metaPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("merge: remove stale meta: %w", err)
	}

	refit := 0
	err = sample.WriteAtomic(featuresPath, func(w io.Writer) error {
		var err error
		refit, err = writeRows(w, samples, t, d)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("merge: write features: %w", err)
	}
	if refit > 0 {
		m.logger.WarnContext(ctx, "reconciled samples to first sample length", "count", refit, "frames", t)
	}

	index := make([]artifact.IndexRow, len(samples))
	for i, s := range samples {
		index[i] = artifact.IndexRow{Row: i, Path: s.Path, SampleID: s.ID, ClassIdx: s.ClassIdx}
	}
	if err := writeJSON(indexPath, index); err != nil {
		return nil, fmt.Errorf("merge: write index: %w", err)
	}

	meta := artifact.NewMeta(len(samples), t, d, featuresPath)
	if err := writeJSON(metaPath, meta); err != nil {
		return nil, fmt.Errorf("merge: write meta: %w", err)
	}

	m.logger.InfoContext(ctx, "merged dataset", "samples", len(samples), "shape", meta.Shape, "output", outputDir)
	return &Result{Meta: meta, MetaPath: metaPath, IndexPath: indexPath}, nil
}

// checkShapes returns the target (T, D) or a descriptive error.
func checkShapes(samples []sample.Sample) (int, int, error) {
	if len(samples) == 0 {
		return 0, 0, errors.New("merge: no samples to merge")
	}
	t, d, ok := samples[0].Sequence.Dims()
	if !ok {
		return 0, 0, fmt.Errorf("merge: first sample %s is not rank-2: shape %s", samples[0].Path, samples[0].Sequence.ShapeString())
	}
	if t == 0 || d == 0 {
		return 0, 0, fmt.Errorf("merge: first sample %s has empty shape %s", samples[0].Path, samples[0].Sequence.ShapeString())
	}
	for _, s := range samples[1:] {
		_, sd, ok := s.Sequence.Dims()
		if !ok {
			return 0, 0, fmt.Errorf("merge: sample %s is not rank-2: shape %s", s.Path, s.Sequence.ShapeString())
		}
		if sd != d {
			return 0, 0, fmt.Errorf("merge: feature dimension mismatch: %s has D=%d, expected %d", s.Path, sd, d)
		}
	}
	return t, d, nil
}

// writeRows streams every sample as one (t, d) block. It returns how many
// samples had to be reconciled to t frames.
func writeRows(w io.Writer, samples []sample.Sample, t, d int) (int, error) {
	bw := bufio.NewWriterSize(w, 1<<20)
	buf := make([]byte, t*d*artifact.ElementSize)
	refit := 0
	for _, s := range samples {
		seq := s.Sequence
		if st, _, _ := seq.Dims(); st != t {
			fitted, err := sample.Fit(seq, t)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", s.Path, err)
			}
			seq = fitted
			refit++
		}
		artifact.PutFloat32s(buf, seq.Data)
		if _, err := bw.Write(buf); err != nil {
			return 0, err
		}
	}
	return refit, bw.Flush()
}

func writeJSON(path string, v any) error {
	return sample.WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
