package sample

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FileStore writes sample archives and their sidecars under Root.
// Every write goes through a temporary file that is fsynced and renamed
// over the destination, so readers never observe a half-written sample.
type FileStore struct {
	Root string
}

// NewFileStore creates a FileStore rooted at root, creating it if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sample: create store dir: %w", err)
	}
	return &FileStore{Root: root}, nil
}

// SidecarPath returns the metadata sidecar location for a sample file:
// same directory and stem, .json suffix.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + SidecarExt
}

// Save writes <Root>/<dir>/<name>.npz with meta embedded, plus a sidecar
// carrying the same meta. Returns the sample path.
func (s *FileStore) Save(dir, name string, seq Array, meta map[string]any) (string, error) {
	if _, _, ok := seq.Dims(); !ok {
		return "", fmt.Errorf("sample: save %s: sequence must be rank-2, got %s", name, seq.ShapeString())
	}
	folder := filepath.Join(s.Root, dir)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("sample: create %s: %w", folder, err)
	}

	path := filepath.Join(folder, name+Ext)
	err := WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, seq, meta)
	})
	if err != nil {
		return "", fmt.Errorf("sample: save %s: %w", path, err)
	}

	if meta != nil {
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return "", fmt.Errorf("sample: marshal sidecar: %w", err)
		}
		if err := renameio.WriteFile(SidecarPath(path), data, 0o644); err != nil {
			return "", fmt.Errorf("sample: write sidecar: %w", err)
		}
	}
	return path, nil
}

// Rewrite replaces the sequence entry of an existing sample archive in place.
// Every other entry (embedded meta included) is carried over byte-for-byte.
// The sidecar is left untouched.
func (s *FileStore) Rewrite(path string, seq Array) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("sample: rewrite %s: %w", path, err)
	}
	entries, err := readEntries(&zr.Reader)
	zr.Close()
	if err != nil {
		return fmt.Errorf("sample: rewrite %s: %w", path, err)
	}

	idx := findSequence(entries)
	if idx < 0 {
		return fmt.Errorf("sample: rewrite %s: %w", path, ErrNoSequence)
	}
	data, err := encodeArray(seq)
	if err != nil {
		return fmt.Errorf("sample: rewrite %s: %w", path, err)
	}
	entries[idx].data = data

	if err := WriteAtomic(path, func(w io.Writer) error { return writeEntries(w, entries) }); err != nil {
		return fmt.Errorf("sample: rewrite %s: %w", path, err)
	}
	return nil
}

// WriteAtomic streams fn's output to a temporary file in path's directory,
// fsyncs it, and renames it over path. On any failure the destination is
// left as it was.
func WriteAtomic(path string, fn func(w io.Writer) error) error {
	pf, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	if err := fn(pf); err != nil {
		return err
	}
	return pf.CloseAtomicallyReplace()
}
