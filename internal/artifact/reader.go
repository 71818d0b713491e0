package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/signbank/internal/sample"
)

// Dataset is an opened merged artifact.
type Dataset struct {
	Meta     Meta
	MetaPath string
	DataPath string

	f *os.File
}

// Open reads meta.json at metaPath and opens the features file it names.
//
// A relative memmap_path is tried as given first, then next to meta.json,
// so an output directory can be moved as a unit. The features file size
// must equal N*T*D*4 exactly.
func Open(metaPath string) (*Dataset, error) {
	meta, err := ReadMeta(metaPath)
	if err != nil {
		return nil, err
	}

	dataPath, err := resolveDataPath(metaPath, meta.MemmapPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("artifact: open features: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("artifact: stat features: %w", err)
	}
	if info.Size() != meta.ByteSize() {
		f.Close()
		return nil, fmt.Errorf("artifact: %s is %d bytes, shape %v needs %d", dataPath, info.Size(), meta.Shape, meta.ByteSize())
	}

	return &Dataset{Meta: *meta, MetaPath: metaPath, DataPath: dataPath, f: f}, nil
}

func resolveDataPath(metaPath, memmapPath string) (string, error) {
	candidates := []string{memmapPath}
	if !filepath.IsAbs(memmapPath) {
		candidates = append(candidates, filepath.Join(filepath.Dir(metaPath), filepath.Base(memmapPath)))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("artifact: stat %s: %w", c, err)
		}
	}
	return "", fmt.Errorf("artifact: features file %q not found", memmapPath)
}

// Close releases the features file.
func (d *Dataset) Close() error {
	return d.f.Close()
}

// Len returns N.
func (d *Dataset) Len() int {
	n, _, _ := d.Meta.Dims()
	return n
}

// Row reads sample i as a (T, D) array.
func (d *Dataset) Row(i int) (sample.Array, error) {
	n, t, dim := d.Meta.Dims()
	if i < 0 || i >= n {
		return sample.Array{}, fmt.Errorf("artifact: row %d out of range [0, %d)", i, n)
	}
	rowBytes := int64(t) * int64(dim) * ElementSize
	buf := make([]byte, rowBytes)
	if _, err := d.f.ReadAt(buf, int64(i)*rowBytes); err != nil {
		return sample.Array{}, fmt.Errorf("artifact: read row %d: %w", i, err)
	}
	out := sample.NewArray(t, dim)
	Float32s(out.Data, buf)
	return out, nil
}

// ChannelStats summarises one feature channel over every frame of every row.
type ChannelStats struct {
	Channel int     `json:"channel"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Stats computes per-channel statistics across all N*T frames.
// The whole artifact is read into memory one channel column at a time.
func (d *Dataset) Stats() ([]ChannelStats, error) {
	n, t, dim := d.Meta.Dims()
	columns := make([][]float64, dim)
	for c := range columns {
		columns[c] = make([]float64, 0, n*t)
	}

	for i := 0; i < n; i++ {
		row, err := d.Row(i)
		if err != nil {
			return nil, err
		}
		for f := 0; f < t; f++ {
			for c, v := range row.Row(f) {
				columns[c] = append(columns[c], float64(v))
			}
		}
	}

	out := make([]ChannelStats, dim)
	for c, col := range columns {
		mean, std := stat.MeanStdDev(col, nil)
		if len(col) < 2 {
			std = 0
		}
		out[c] = ChannelStats{
			Channel: c,
			Mean:    mean,
			StdDev:  std,
			Min:     floats.Min(col),
			Max:     floats.Max(col),
		}
	}
	return out, nil
}
