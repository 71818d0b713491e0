package sample

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kshedden/gonpy"
)

// File naming.
const (
	Ext        = ".npz"
	SidecarExt = ".json"
	npyExt     = ".npy"
)

// Archive entry names (without the .npy suffix).
const (
	KeySequence  = "sequence"
	KeySequences = "sequences"
	KeyMeta      = "meta"
)

// ErrNoSequence marks an archive without a sequence entry. Such files are
// treated as unfinished or foreign, not as corrupt.
var ErrNoSequence = errors.New("sample: no sequence entry")

// ReadMode selects how strictly array entries are decoded.
type ReadMode int

const (
	// ReadStrict accepts only little/big-endian float32 in C order.
	ReadStrict ReadMode = iota
	// ReadPermissive also accepts float64 and integer arrays (converted to
	// float32) and Fortran-ordered data (reordered to row-major).
	ReadPermissive
)

func (m ReadMode) String() string {
	if m == ReadPermissive {
		return "permissive"
	}
	return "strict"
}

// File is the decoded content of one sample archive.
type File struct {
	SequenceKey string
	Sequence    Array
	Meta        []byte
	HasMeta     bool
}

// entry is one raw archive member.
type entry struct {
	name   string
	method uint16
	data   []byte
}

// ReadFile decodes the sample archive at path.
func ReadFile(path string, mode ReadMode) (*File, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("sample: open %s: %w", path, err)
	}
	defer zr.Close()

	entries, err := readEntries(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("sample: read %s: %w", path, err)
	}
	return decodeEntries(entries, mode)
}

// Decode decodes an in-memory sample archive.
func Decode(data []byte, mode ReadMode) (*File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("sample: open archive: %w", err)
	}
	entries, err := readEntries(zr)
	if err != nil {
		return nil, fmt.Errorf("sample: read archive: %w", err)
	}
	return decodeEntries(entries, mode)
}

// Encode writes a sample archive holding seq and, when meta is non-nil,
// an embedded meta entry.
func Encode(w io.Writer, seq Array, meta map[string]any) error {
	seqBytes, err := encodeArray(seq)
	if err != nil {
		return err
	}
	entries := []entry{{name: KeySequence + npyExt, method: zip.Deflate, data: seqBytes}}

	if meta != nil {
		metaBytes, err := encodeMeta(meta)
		if err != nil {
			return err
		}
		entries = append(entries, entry{name: KeyMeta + npyExt, method: zip.Deflate, data: metaBytes})
	}
	return writeEntries(w, entries)
}

func readEntries(zr *zip.Reader) ([]entry, error) {
	entries := make([]entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", f.Name, err)
		}
		entries = append(entries, entry{name: f.Name, method: f.Method, data: data})
	}
	return entries, nil
}

func writeEntries(w io.Writer, entries []entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			return fmt.Errorf("sample: create entry %q: %w", e.name, err)
		}
		if _, err := fw.Write(e.data); err != nil {
			return fmt.Errorf("sample: write entry %q: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("sample: finish archive: %w", err)
	}
	return nil
}

// entryKey strips the .npy suffix NumPy adds to archive member names.
func entryKey(name string) string {
	return strings.TrimSuffix(name, npyExt)
}

// findSequence returns the index of the sequence entry, preferring the
// singular key over the plural alias. Returns -1 if neither exists.
func findSequence(entries []entry) int {
	alias := -1
	for i, e := range entries {
		switch entryKey(e.name) {
		case KeySequence:
			return i
		case KeySequences:
			if alias < 0 {
				alias = i
			}
		}
	}
	return alias
}

func decodeEntries(entries []entry, mode ReadMode) (*File, error) {
	idx := findSequence(entries)
	if idx < 0 {
		return nil, ErrNoSequence
	}

	seq, err := decodeArray(entries[idx].data, mode)
	if err != nil {
		return nil, fmt.Errorf("sample: decode %s (%s): %w", entries[idx].name, mode, err)
	}

	f := &File{SequenceKey: entryKey(entries[idx].name), Sequence: seq}
	for _, e := range entries {
		if entryKey(e.name) == KeyMeta {
			f.Meta = e.data
			f.HasMeta = true
			break
		}
	}
	return f, nil
}

// newNpyReader parses an .npy header. Malformed headers can panic inside
// the decoder; they are reported as errors instead.
func newNpyReader(raw []byte) (rdr *gonpy.NpyReader, err error) {
	defer func() {
		if r := recover(); r != nil {
			rdr = nil
			err = fmt.Errorf("malformed npy header: %v", r)
		}
	}()
	return gonpy.NewReader(bytes.NewReader(raw))
}

func decodeArray(raw []byte, mode ReadMode) (Array, error) {
	rdr, err := newNpyReader(raw)
	if err != nil {
		return Array{}, err
	}
	shape := append([]int{}, rdr.Shape...)

	var data []float32
	if mode == ReadStrict {
		if rdr.Dtype != "f4" {
			return Array{}, fmt.Errorf("dtype %q is not float32", rdr.Dtype)
		}
		if rdr.ColumnMajor {
			return Array{}, errors.New("fortran order not accepted")
		}
		data, err = rdr.GetFloat32()
	} else {
		data, err = readAsFloat32(rdr)
		if err == nil && rdr.ColumnMajor {
			data = fromColumnMajor(data, shape)
		}
	}
	if err != nil {
		return Array{}, err
	}
	if len(data) != elements(shape) {
		return Array{}, fmt.Errorf("got %d values for shape %v", len(data), shape)
	}
	return Array{Shape: shape, Data: data}, nil
}

// readAsFloat32 converts any supported numeric dtype to float32.
func readAsFloat32(rdr *gonpy.NpyReader) ([]float32, error) {
	switch rdr.Dtype {
	case "f4":
		return rdr.GetFloat32()
	case "f8":
		v, err := rdr.GetFloat64()
		return convert(v, err)
	case "i8":
		v, err := rdr.GetInt64()
		return convert(v, err)
	case "i4":
		v, err := rdr.GetInt32()
		return convert(v, err)
	case "i2":
		v, err := rdr.GetInt16()
		return convert(v, err)
	case "u1":
		v, err := rdr.GetUint8()
		return convert(v, err)
	default:
		return nil, fmt.Errorf("unsupported dtype %q", rdr.Dtype)
	}
}

func convert[T float64 | int64 | int32 | int16 | uint8](v []T, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out, nil
}

// nopCloser adapts a buffer to the io.WriteCloser the npy writer closes
// after every array.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func encodeArray(a Array) ([]byte, error) {
	if len(a.Data) != elements(a.Shape) {
		return nil, fmt.Errorf("sample: %d values for shape %v", len(a.Data), a.Shape)
	}
	var buf bytes.Buffer
	w, err := gonpy.NewWriter(nopCloser{&buf})
	if err != nil {
		return nil, fmt.Errorf("sample: npy writer: %w", err)
	}
	w.Shape = append([]int{}, a.Shape...)
	if err := w.WriteFloat32(a.Data); err != nil {
		return nil, fmt.Errorf("sample: encode sequence: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeMeta(meta map[string]any) ([]byte, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("sample: marshal meta: %w", err)
	}
	var buf bytes.Buffer
	w, err := gonpy.NewWriter(nopCloser{&buf})
	if err != nil {
		return nil, fmt.Errorf("sample: npy writer: %w", err)
	}
	if err := w.WriteUint8(payload); err != nil {
		return nil, fmt.Errorf("sample: encode meta: %w", err)
	}
	return buf.Bytes(), nil
}
