package merge

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/signbank/internal/artifact"
	"github.com/roach88/signbank/internal/sample"
	"github.com/roach88/signbank/internal/testutil"
)

func quietMerger() *Merger {
	return New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func labeled(path string, seq sample.Array, id string, class int) sample.Sample {
	return sample.Sample{ID: id, Path: path, Sequence: seq, ClassIdx: &class}
}

func readFeatures(t *testing.T, res *Result) []float32 {
	t.Helper()
	raw, err := os.ReadFile(res.MemmapPath)
	require.NoError(t, err)
	out := make([]float32, len(raw)/artifact.ElementSize)
	artifact.Float32s(out, raw)
	return out
}

func TestMerge_RowsInListOrderBitIdentical(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	a := testutil.Seq(3, 2, 0.5)
	b := testutil.Seq(3, 2, 100.25)
	samples := []sample.Sample{labeled("a.npz", a, "", 0), labeled("b.npz", b, "", 1)}

	res, err := quietMerger().Merge(context.Background(), samples, out)
	require.NoError(t, err)

	assert.Equal(t, 2, res.TotalSamples)
	assert.Equal(t, []int{2, 3, 2}, res.Shape)
	assert.Equal(t, artifact.DType, res.DType)
	assert.Equal(t, filepath.Join(out, artifact.FeaturesFile), res.MemmapPath)
	assert.Equal(t, filepath.Join(out, artifact.MetaFile), res.MetaPath)
	assert.Equal(t, filepath.Join(out, artifact.IndexFile), res.IndexPath)

	got := readFeatures(t, res)
	assert.Equal(t, append(append([]float32{}, a.Data...), b.Data...), got)
}

func TestMerge_ArtifactReopens(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	samples := []sample.Sample{
		labeled("a.npz", testutil.Seq(2, 3, 1), "id-a", 4),
		labeled("b.npz", testutil.Seq(2, 3, 2), "id-b", 5),
	}

	res, err := quietMerger().Merge(context.Background(), samples, out)
	require.NoError(t, err)

	ds, err := artifact.Open(res.MetaPath)
	require.NoError(t, err)
	defer ds.Close()
	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.Equal(t, testutil.Seq(2, 3, 2), row)

	index, err := artifact.ReadIndex(res.IndexPath)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "id-b", index[1].SampleID)
	require.NotNil(t, index[1].ClassIdx)
	assert.Equal(t, 5, *index[1].ClassIdx)
}

func TestMerge_SidecarGolden(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	unlabeled := sample.Sample{Path: "features/b.npz", Sequence: testutil.Seq(3, 2, 0)}
	samples := []sample.Sample{
		labeled("features/a.npz", testutil.Seq(3, 2, 0), "s-1", 1),
		unlabeled,
	}

	_, err := quietMerger().Merge(context.Background(), samples, out)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, name := range []string{artifact.MetaFile, artifact.IndexFile} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		data = []byte(strings.ReplaceAll(string(data), out, "$OUT"))
		g.Assert(t, strings.TrimSuffix(name, ".json"), data)
	}
}

func TestMerge_ReconcilesToFirstSampleLength(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	first := testutil.Seq(3, 2, 0)
	short := testutil.Seq(1, 2, 50)
	long := testutil.Seq(5, 2, 90)
	samples := []sample.Sample{
		labeled("a.npz", first, "", 0),
		labeled("b.npz", short, "", 0),
		labeled("c.npz", long, "", 0),
	}

	res, err := quietMerger().Merge(context.Background(), samples, out)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 2}, res.Shape)

	got := readFeatures(t, res)
	require.Len(t, got, 18)
	assert.Equal(t, short.Data, got[6:8])
	assert.Equal(t, []float32{0, 0, 0, 0}, got[8:12])
	assert.Equal(t, long.Data[:6], got[12:18])
}

func TestMerge_FailuresWriteNothing(t *testing.T) {
	vector := sample.Array{Shape: []int{4}, Data: make([]float32, 4)}
	tests := []struct {
		name    string
		samples []sample.Sample
		wantMsg string
	}{
		{"empty input", nil, "no samples"},
		{"first not rank-2", []sample.Sample{{Path: "a", Sequence: vector}}, "not rank-2"},
		{"later not rank-2", []sample.Sample{
			{Path: "a", Sequence: testutil.Seq(2, 2, 0)},
			{Path: "b", Sequence: vector},
		}, "not rank-2"},
		{"dimension mismatch", []sample.Sample{
			{Path: "a", Sequence: testutil.Seq(2, 2, 0)},
			{Path: "b", Sequence: testutil.Seq(2, 3, 0)},
		}, "feature dimension mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "memmap")

			_, err := quietMerger().Merge(context.Background(), tt.samples, out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "output dir must not be created")
		})
	}
}

func TestMerge_OverwritesPriorArtifact(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	m := quietMerger()

	three := []sample.Sample{
		labeled("a", testutil.Seq(2, 2, 0), "", 0),
		labeled("b", testutil.Seq(2, 2, 0), "", 0),
		labeled("c", testutil.Seq(2, 2, 0), "", 0),
	}
	_, err := m.Merge(context.Background(), three, out)
	require.NoError(t, err)

	res, err := m.Merge(context.Background(), three[:1], out)
	require.NoError(t, err)

	info, err := os.Stat(res.MemmapPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2*2*artifact.ElementSize), info.Size())

	meta, err := artifact.ReadMeta(res.MetaPath)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalSamples)
}

func TestMerge_FailedFeaturesWriteLeavesNoSidecar(t *testing.T) {
	out := filepath.Join(t.TempDir(), "memmap")
	require.NoError(t, os.MkdirAll(filepath.Join(out, artifact.FeaturesFile, "blocker"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, artifact.MetaFile), []byte(`{"stale": true}`), 0o644))

	_, err := quietMerger().Merge(context.Background(), []sample.Sample{
		labeled("a", testutil.Seq(2, 2, 0), "", 0),
	}, out)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(out, artifact.MetaFile))
	assert.True(t, os.IsNotExist(statErr), "stale meta.json must be gone")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be cleaned up")
}
