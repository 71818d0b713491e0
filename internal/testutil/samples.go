// Package testutil provides fixtures shared by package tests: sample files
// on disk and a deterministic clock.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/signbank/internal/sample"
)

// Seq builds a (t, d) array whose element (i, j) is base + i*1000 + j.
// Distinct bases make samples distinguishable after a merge.
func Seq(t, d int, base float32) sample.Array {
	a := sample.NewArray(t, d)
	for i := 0; i < t; i++ {
		for j := 0; j < d; j++ {
			a.Data[i*d+j] = base + float32(i*1000+j)
		}
	}
	return a
}

// WriteSample writes root/rel as a sample archive containing seq, with a
// sidecar carrying {"class_idx": classIdx} unless classIdx is negative.
// Returns the absolute sample path.
func WriteSample(t *testing.T, root, rel string, seq sample.Array, classIdx int) string {
	t.Helper()
	path := writeArchive(t, root, rel, seq, nil)
	if classIdx >= 0 {
		WriteSidecar(t, path, map[string]any{"class_idx": classIdx})
	}
	return path
}

// WriteEmbedded writes root/rel with meta embedded in the archive and no sidecar.
func WriteEmbedded(t *testing.T, root, rel string, seq sample.Array, meta map[string]any) string {
	t.Helper()
	return writeArchive(t, root, rel, seq, meta)
}

// WriteSidecar writes the JSON sidecar for the sample at path.
func WriteSidecar(t *testing.T, path string, meta map[string]any) {
	t.Helper()
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal sidecar: %v", err)
	}
	if err := os.WriteFile(sample.SidecarPath(path), data, 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
}

// WriteFile writes raw bytes at root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadSequence decodes the sequence stored at path.
func ReadSequence(t *testing.T, path string) sample.Array {
	t.Helper()
	f, err := sample.ReadFile(path, sample.ReadStrict)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return f.Sequence
}

func writeArchive(t *testing.T, root, rel string, seq sample.Array, meta map[string]any) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := sample.Encode(f, seq, meta); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}
