// Package artifact describes the merged dataset artifact: the contiguous
// (N, T, D) float32 features file, its meta.json layout sidecar and the
// index.json row manifest.
//
// The features file is headerless. meta.json is the only place N, T and D
// are recorded, so a reader must always go through it.
package artifact

import (
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

// File names inside an output directory.
const (
	FeaturesFile = "features.dat"
	MetaFile     = "meta.json"
	IndexFile    = "index.json"
)

// DType is the only element type the artifact is written in.
const DType = "float32"

// ElementSize is the byte width of one DType element.
const ElementSize = 4

//go:embed schema.cue
var schemaSource string

// Meta is the content of meta.json.
type Meta struct {
	TotalSamples int    `json:"total_samples"`
	Shape        []int  `json:"shape"`
	DType        string `json:"dtype"`
	MemmapPath   string `json:"memmap_path"`
}

// NewMeta builds the metadata for n samples of shape (t, d).
func NewMeta(n, t, d int, memmapPath string) Meta {
	return Meta{
		TotalSamples: n,
		Shape:        []int{n, t, d},
		DType:        DType,
		MemmapPath:   memmapPath,
	}
}

// Dims returns (N, T, D).
func (m Meta) Dims() (n, t, d int) {
	if len(m.Shape) != 3 {
		return 0, 0, 0
	}
	return m.Shape[0], m.Shape[1], m.Shape[2]
}

// ByteSize is the exact size the features file must have.
func (m Meta) ByteSize() int64 {
	n, t, d := m.Dims()
	return int64(n) * int64(t) * int64(d) * ElementSize
}

// IndexRow maps one artifact row back to the sample it came from.
type IndexRow struct {
	Row      int    `json:"row"`
	Path     string `json:"path"`
	SampleID string `json:"sample_id,omitempty"`
	ClassIdx *int   `json:"class_idx"`
}

// SchemaError reports a document that does not satisfy the artifact schema.
type SchemaError struct {
	Definition string
	Message    string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("artifact: %s: %s", e.Definition, e.Message)
}

// ValidateMeta checks raw meta.json bytes against the #Meta schema.
// Beyond types it enforces shape[0] == total_samples and dtype "float32".
func ValidateMeta(data []byte) error {
	return validate("#Meta", data)
}

// ValidateIndex checks raw index.json bytes against the #Index schema.
func ValidateIndex(data []byte) error {
	return validate("#Index", data)
}

func validate(definition string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("artifact: compile schema: %w", err)
	}

	expr, err := cuejson.Extract(definition, data)
	if err != nil {
		return &SchemaError{Definition: definition, Message: firstCUEError(err)}
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return &SchemaError{Definition: definition, Message: firstCUEError(err)}
	}

	v := schema.LookupPath(cue.ParsePath(definition)).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Definition: definition, Message: firstCUEError(err)}
	}
	return nil
}

// firstCUEError flattens a CUE error list to its first message.
func firstCUEError(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

// ReadMeta loads and schema-checks a meta.json file.
func ReadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read meta: %w", err)
	}
	if err := ValidateMeta(data); err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("artifact: decode meta: %w", err)
	}
	return &m, nil
}

// ReadIndex loads and schema-checks an index.json file.
func ReadIndex(path string) ([]IndexRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read index: %w", err)
	}
	if err := ValidateIndex(data); err != nil {
		return nil, err
	}
	var rows []IndexRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("artifact: decode index: %w", err)
	}
	return rows, nil
}

// PutFloat32s encodes src into dst as little-endian float32.
// dst must hold at least len(src)*ElementSize bytes.
func PutFloat32s(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*ElementSize:], math.Float32bits(v))
	}
}

// Float32s decodes little-endian float32 values from src into dst.
func Float32s(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*ElementSize:]))
	}
}
