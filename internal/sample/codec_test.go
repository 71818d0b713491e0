package sample

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kshedden/gonpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	seq := seqOf(60, 226)
	meta := map[string]any{"class_idx": 1, "source": "camera"}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, seq, meta))

	f, err := Decode(buf.Bytes(), ReadStrict)
	require.NoError(t, err)

	assert.Equal(t, KeySequence, f.SequenceKey)
	assert.Equal(t, []int{60, 226}, f.Sequence.Shape)
	assert.Equal(t, seq.Data, f.Sequence.Data)
	require.True(t, f.HasMeta)
	assert.Equal(t, "camera", DecodeEmbedded(f.Meta)["source"])
}

func TestEncode_NilMetaOmitsEntry(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, seqOf(2, 2), nil))

	f, err := Decode(buf.Bytes(), ReadStrict)
	require.NoError(t, err)
	assert.False(t, f.HasMeta)
}

func TestDecode_PluralAlias(t *testing.T) {
	raw := archive(t, map[string][]byte{"sequences.npy": npyFloat32(t, []int{2, 3}, []float32{1, 2, 3, 4, 5, 6}, false)})

	f, err := Decode(raw, ReadStrict)
	require.NoError(t, err)
	assert.Equal(t, KeySequences, f.SequenceKey)
	assert.Equal(t, []int{2, 3}, f.Sequence.Shape)
}

func TestDecode_MissingSequence(t *testing.T) {
	raw := archive(t, map[string][]byte{"other.npy": npyFloat32(t, []int{1}, []float32{1}, false)})

	_, err := Decode(raw, ReadPermissive)
	assert.True(t, errors.Is(err, ErrNoSequence))
}

func TestDecode_StrictRejectsFloat64PermissiveConverts(t *testing.T) {
	raw := archive(t, map[string][]byte{"sequence.npy": npyFloat64(t, []int{2, 2}, []float64{0.5, 1.5, 2.5, 3.5})})

	_, err := Decode(raw, ReadStrict)
	require.Error(t, err)

	f, err := Decode(raw, ReadPermissive)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1.5, 2.5, 3.5}, f.Sequence.Data)
}

func TestDecode_PermissiveReordersFortran(t *testing.T) {
	raw := archive(t, map[string][]byte{"sequence.npy": npyFloat32(t, []int{2, 3}, []float32{1, 4, 2, 5, 3, 6}, true)})

	_, err := Decode(raw, ReadStrict)
	require.Error(t, err)

	f, err := Decode(raw, ReadPermissive)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, f.Sequence.Data)
}

func TestDecode_NotAnArchive(t *testing.T) {
	_, err := Decode([]byte("definitely not a zip"), ReadPermissive)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSequence))
}

func TestFileStore_SaveWritesArchiveAndSidecar(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "features"))
	require.NoError(t, err)

	path, err := store.Save("class_0001_hello", "sample_0001", seqOf(3, 2), map[string]any{"class_idx": 1})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root, "class_0001_hello", "sample_0001.npz"), path)

	f, err := ReadFile(path, ReadStrict)
	require.NoError(t, err)
	assert.Equal(t, seqOf(3, 2).Data, f.Sequence.Data)

	sidecar, err := os.ReadFile(SidecarPath(path))
	require.NoError(t, err)
	assert.JSONEq(t, `{"class_idx": 1}`, string(sidecar))
}

func TestFileStore_SaveRejectsNonRank2(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("x", "bad", Array{Shape: []int{4}, Data: make([]float32, 4)}, nil)
	assert.Error(t, err)
}

func TestFileStore_RewritePreservesOtherEntries(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	path, err := store.Save("", "s", seqOf(45, 2), map[string]any{"source": "camera"})
	require.NoError(t, err)

	fixed, err := Fit(seqOf(45, 2), 60)
	require.NoError(t, err)
	require.NoError(t, store.Rewrite(path, fixed))

	f, err := ReadFile(path, ReadStrict)
	require.NoError(t, err)
	assert.Equal(t, []int{60, 2}, f.Sequence.Shape)
	assert.Equal(t, "camera", DecodeEmbedded(f.Meta)["source"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files may be left behind")
}

func TestFileStore_RewriteMissingFile(t *testing.T) {
	store := &FileStore{Root: t.TempDir()}
	err := store.Rewrite(filepath.Join(store.Root, "missing.npz"), seqOf(1, 1))
	assert.Error(t, err)
}

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "/a/b/sample_1.json", SidecarPath("/a/b/sample_1.npz"))
}

func archive(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func npyFloat32(t *testing.T, shape []int, data []float32, fortran bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := gonpy.NewWriter(nopCloser{&buf})
	require.NoError(t, err)
	w.Shape = shape
	w.ColumnMajor = fortran
	require.NoError(t, w.WriteFloat32(data))
	return buf.Bytes()
}

func npyFloat64(t *testing.T, shape []int, data []float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := gonpy.NewWriter(nopCloser{&buf})
	require.NoError(t, err)
	w.Shape = shape
	require.NoError(t, w.WriteFloat64(data))
	return buf.Bytes()
}
