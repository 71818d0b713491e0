// Package scan discovers stored sample archives under a directory tree and
// loads each one with its resolved metadata.
//
// Scanning is a pure read. A file that cannot be decoded by either the
// strict or the permissive reader is skipped and logged; only a failure
// to walk the root itself is returned as an error.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/signbank/internal/logging"
	"github.com/roach88/signbank/internal/sample"
)

// Scanner loads every sample archive beneath a root directory.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner that logs skipped files through logger.
// A nil logger uses the "scan" component logger.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.New("scan")
	}
	return &Scanner{logger: logger}
}

// Scan walks root and returns every loadable sample, sorted by path.
//
// Archives without a sequence entry are skipped silently. Unreadable
// archives are skipped with a warning. A missing root yields no samples.
// A scan is never cut short by ctx; it is used for logging only.
func (s *Scanner) Scan(ctx context.Context, root string) ([]sample.Sample, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), sample.Ext) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	sort.Strings(paths)

	samples := make([]sample.Sample, 0, len(paths))
	for _, path := range paths {
		smp, err := LoadSample(path)
		switch {
		case err == nil:
			samples = append(samples, smp)
		case errors.Is(err, sample.ErrNoSequence):
			s.logger.DebugContext(ctx, "skipping archive without sequence", "path", path)
		default:
			s.logger.WarnContext(ctx, "skipping unreadable sample", "path", path, "error", err)
		}
	}

	s.logger.DebugContext(ctx, "scan complete", "root", root, "files", len(paths), "samples", len(samples))
	return samples, nil
}

// LoadSample reads one archive and resolves its metadata.
// The strict reader is tried first; on failure the permissive reader is
// used. If both fail the strict reader's error is returned, unless the
// archive simply has no sequence entry, in which case ErrNoSequence is.
func LoadSample(path string) (sample.Sample, error) {
	f, err := sample.ReadFile(path, sample.ReadStrict)
	if err != nil {
		if errors.Is(err, sample.ErrNoSequence) {
			return sample.Sample{}, err
		}
		var permErr error
		f, permErr = sample.ReadFile(path, sample.ReadPermissive)
		if permErr != nil {
			return sample.Sample{}, err
		}
	}

	sidecar, hasSidecar := readSidecar(path)
	src := sample.ResolveMetadata(sidecar, hasSidecar, f.Meta, f.HasMeta)
	return sample.New(path, f.Sequence, src), nil
}

// readSidecar reports the sidecar bytes and whether the sidecar exists.
// An existing but unreadable sidecar still counts as present, with no bytes,
// so it shadows any embedded metadata.
func readSidecar(path string) ([]byte, bool) {
	data, err := os.ReadFile(sample.SidecarPath(path))
	if err == nil {
		return data, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false
	}
	return nil, true
}
