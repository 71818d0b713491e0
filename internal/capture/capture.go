// Package capture turns a camera upload into stored samples.
//
// A payload's frames are flattened into a (frames, D) sequence, fitted to
// the dataset length, expanded by an Augmenter and written through the
// sample file store. Each stored file gets a fresh sample_id and a catalog
// row under its label.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/signbank/internal/catalog"
	"github.com/roach88/signbank/internal/ids"
	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/sample"
)

// SourceCamera is the metadata "source" of camera captures.
const SourceCamera = "camera"

// ErrInvalidPayload wraps every rejection caused by the upload itself.
var ErrInvalidPayload = errors.New("invalid capture payload")

// Payload is a camera upload.
type Payload struct {
	User      string  `json:"user"`
	Label     string  `json:"label"`
	SessionID string  `json:"session_id"`
	Dialect   string  `json:"dialect"`
	Frames    []Frame `json:"frames"`
}

// Result lists what a capture stored.
type Result struct {
	SessionID string   `json:"session_id"`
	Label     string   `json:"label"`
	ClassIdx  int      `json:"class_idx"`
	Paths     []string `json:"paths"`
}

// Catalog is the slice of the catalog a capture writes to.
type Catalog interface {
	RegisterLabel(ctx context.Context, name string, folder func(classIdx int) string) (catalog.Label, error)
	AddSample(ctx context.Context, rec catalog.SampleRecord) error
}

// Service stores camera captures.
type Service struct {
	store     *sample.FileStore
	catalog   Catalog
	targetT   int
	expectedD int
	augmenter Augmenter
	ids       ids.Generator
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAugmenter replaces the identity augmenter.
func WithAugmenter(a Augmenter) Option {
	return func(s *Service) { s.augmenter = a }
}

// WithIDGenerator sets the generator for sample and session IDs.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock sets the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a capture service writing to store and cat.
// Sequences are fitted to targetT frames. expectedD is only used to warn
// about captures whose width will not pass validation; 0 disables it.
func NewService(store *sample.FileStore, cat Catalog, targetT, expectedD int, opts ...Option) *Service {
	s := &Service{
		store:     store,
		catalog:   cat,
		targetT:   targetT,
		expectedD: expectedD,
		augmenter: Identity{},
		ids:       ids.UUIDv7{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New("capture")
	}
	return s
}

// Capture stores one upload. Payload problems wrap ErrInvalidPayload.
func (s *Service) Capture(ctx context.Context, p Payload) (*Result, error) {
	label := strings.TrimSpace(p.Label)
	if label == "" || len(p.Frames) == 0 {
		return nil, fmt.Errorf("%w: missing label or frames", ErrInvalidPayload)
	}

	seq, err := BuildSequence(p.Frames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	fitted, err := sample.Fit(seq, s.targetT)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if _, d, _ := fitted.Dims(); s.expectedD > 0 && d != s.expectedD {
		s.logger.Warn("captured feature width differs from dataset schema", "got", d, "expected", s.expectedD)
	}

	lbl, err := s.catalog.RegisterLabel(ctx, label, func(idx int) string { return FolderName(idx, label) })
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = s.ids.Generate()
	}

	variants := s.augmenter.Augment(fitted)
	res := &Result{SessionID: sessionID, Label: lbl.Name, ClassIdx: lbl.ClassIdx, Paths: make([]string, 0, len(variants))}
	createdAt := s.now().UTC()
	duration := Duration(p.Frames)

	for i, v := range variants {
		if _, _, ok := v.Dims(); !ok {
			s.logger.Error("augmenter produced non rank-2 sequence, skipping", "index", i, "shape", v.ShapeString())
			continue
		}
		id := s.ids.Generate()
		meta := map[string]any{
			"class_idx":        lbl.ClassIdx,
			"label":            lbl.Name,
			"user":             p.User,
			"session_id":       sessionID,
			"dialect":          p.Dialect,
			"frames":           s.targetT,
			"source":           SourceCamera,
			"created_at":       createdAt.Format(time.RFC3339),
			"augmented":        len(variants) > 1,
			"aug_index":        i,
			"total_augs":       len(variants),
			sample.SampleIDKey: id,
		}

		path, err := s.store.Save(lbl.FolderName, "sample_"+id, v, meta)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		err = s.catalog.AddSample(ctx, catalog.SampleRecord{
			ID:        id,
			LabelID:   lbl.ID,
			FilePath:  path,
			User:      p.User,
			SessionID: sessionID,
			Frames:    s.targetT,
			Duration:  duration,
			Meta:      meta,
			CreatedAt: createdAt,
		})
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		res.Paths = append(res.Paths, path)
	}

	s.logger.Info("capture stored", "label", lbl.Name, "class_idx", lbl.ClassIdx, "session_id", sessionID, "samples", len(res.Paths))
	return res, nil
}
