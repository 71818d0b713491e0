package scan

import (
	"archive/zip"
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signbank/internal/sample"
	"github.com/roach88/signbank/internal/testutil"
)

func quietScanner() *Scanner {
	return New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestScan_SortedByPath(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSample(t, root, "b/two.npz", testutil.Seq(3, 4, 0), 1)
	testutil.WriteSample(t, root, "a/one.npz", testutil.Seq(3, 4, 0), 0)
	testutil.WriteSample(t, root, "a/zero.npz", testutil.Seq(3, 4, 0), 2)

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	got := make([]string, len(samples))
	for i, s := range samples {
		rel, err := filepath.Rel(root, s.Path)
		require.NoError(t, err)
		got[i] = filepath.ToSlash(rel)
	}
	assert.Equal(t, []string{"a/one.npz", "a/zero.npz", "b/two.npz"}, got)
}

func TestScan_RepeatedScansAreIdentical(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c.npz", "a.npz", "b.npz"} {
		testutil.WriteSample(t, root, name, testutil.Seq(2, 2, 0), 0)
	}

	s := quietScanner()
	first, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScan_SidecarClassIndex(t *testing.T) {
	root := t.TempDir()
	path := testutil.WriteSample(t, root, "s.npz", testutil.Seq(2, 3, 5), 7)

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	s := samples[0]
	assert.Equal(t, path, s.Path)
	require.NotNil(t, s.ClassIdx)
	assert.Equal(t, 7, *s.ClassIdx)
	assert.Equal(t, sample.MetaSidecar, s.Source.Kind)
	assert.Equal(t, []int{2, 3}, s.Sequence.Shape)
	assert.Equal(t, testutil.Seq(2, 3, 5).Data, s.Sequence.Data)
}

func TestScan_SidecarShadowsEmbedded(t *testing.T) {
	root := t.TempDir()
	path := testutil.WriteEmbedded(t, root, "s.npz", testutil.Seq(2, 2, 0), map[string]any{"class_idx": 3})
	testutil.WriteSidecar(t, path, map[string]any{"class_idx": 9})

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.NotNil(t, samples[0].ClassIdx)
	assert.Equal(t, 9, *samples[0].ClassIdx)
}

func TestScan_EmbeddedMetadataFallback(t *testing.T) {
	root := t.TempDir()
	testutil.WriteEmbedded(t, root, "s.npz", testutil.Seq(2, 2, 0), map[string]any{
		"class_idx": "4",
		"sample_id": "abc",
	})

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	s := samples[0]
	assert.Equal(t, sample.MetaEmbedded, s.Source.Kind)
	require.NotNil(t, s.ClassIdx)
	assert.Equal(t, 4, *s.ClassIdx)
	assert.Equal(t, "abc", s.ID)
}

func TestScan_UnparseableSidecarYieldsEmptyMeta(t *testing.T) {
	root := t.TempDir()
	path := testutil.WriteEmbedded(t, root, "s.npz", testutil.Seq(2, 2, 0), map[string]any{"class_idx": 3})
	testutil.WriteFile(t, root, "s.json", []byte("{not json"))

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, path, samples[0].Path)
	assert.Nil(t, samples[0].ClassIdx)
	assert.Empty(t, samples[0].Meta)
}

func TestScan_NoMetadata(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSample(t, root, "s.npz", testutil.Seq(2, 2, 0), -1)

	samples, err := quietScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, sample.MetaAbsent, samples[0].Source.Kind)
	assert.Nil(t, samples[0].ClassIdx)
	assert.NotNil(t, samples[0].Meta)
}

func TestScan_SkipsCorruptAndForeignFiles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSample(t, root, "good.npz", testutil.Seq(2, 2, 0), 0)
	testutil.WriteFile(t, root, "corrupt.npz", []byte("this is not a zip"))
	testutil.WriteFile(t, root, "notes.txt", []byte("ignored"))

	var logs bytes.Buffer
	s := New(slog.New(slog.NewTextHandler(&logs, nil)))

	samples, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, filepath.Join(root, "good.npz"), samples[0].Path)
	assert.Contains(t, logs.String(), "skipping unreadable sample")
	assert.Contains(t, logs.String(), "corrupt.npz")
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	samples, err := quietScanner().Scan(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestScan_CanceledContextStillCompletes(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSample(t, root, "a.npz", testutil.Seq(2, 2, 0), 0)
	testutil.WriteSample(t, root, "b.npz", testutil.Seq(2, 2, 1), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := quietScanner().Scan(ctx, root)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestScan_SkipsArchiveWithoutSequence(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("labels.npy")
	require.NoError(t, err)
	_, err = w.Write([]byte("unused"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	testutil.WriteFile(t, root, "pending.npz", buf.Bytes())

	var logs bytes.Buffer
	s := New(slog.New(slog.NewTextHandler(&logs, nil)))

	samples, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NotContains(t, logs.String(), "WARN")
}
