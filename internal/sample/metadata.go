package sample

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MetaKind identifies where a sample's metadata came from.
type MetaKind int

const (
	// MetaAbsent means neither a sidecar nor an embedded entry exists.
	MetaAbsent MetaKind = iota
	// MetaSidecar means a co-located <stem>.json file exists; it is authoritative.
	MetaSidecar
	// MetaEmbedded means the sample file carries a "meta" entry.
	MetaEmbedded
)

// String returns the lowercase name used in CLI output.
func (k MetaKind) String() string {
	switch k {
	case MetaSidecar:
		return "sidecar"
	case MetaEmbedded:
		return "embedded"
	default:
		return "absent"
	}
}

// MarshalJSON encodes the kind by name.
func (k MetaKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Metadata is the unresolved metadata origin of a sample.
// Raw holds the sidecar file bytes or the embedded .npy entry bytes.
type Metadata struct {
	Kind MetaKind
	Raw  []byte
}

// ResolveMetadata picks the metadata origin by precedence:
// sidecar (if the file exists, even when unreadable JSON), then embedded, then absent.
func ResolveMetadata(sidecar []byte, hasSidecar bool, embedded []byte, hasEmbedded bool) Metadata {
	switch {
	case hasSidecar:
		return Metadata{Kind: MetaSidecar, Raw: sidecar}
	case hasEmbedded:
		return Metadata{Kind: MetaEmbedded, Raw: embedded}
	default:
		return Metadata{Kind: MetaAbsent}
	}
}

// Fields converts the metadata into a plain mapping.
// Decode failures yield an empty map, never an error.
func (m Metadata) Fields() map[string]any {
	switch m.Kind {
	case MetaSidecar:
		return decodeJSONObject(m.Raw)
	case MetaEmbedded:
		return DecodeEmbedded(m.Raw)
	default:
		return map[string]any{}
	}
}

// DecodeEmbedded converts the raw bytes of an embedded "meta" entry into a mapping.
//
// Accepted encodings:
//   - .npy uint8/int8 array whose bytes are a JSON object (written by this package)
//   - bare JSON object bytes
//
// Anything else (pickled object arrays, unicode arrays, garbage) yields an empty map.
func DecodeEmbedded(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	rdr, err := newNpyReader(raw)
	if err != nil {
		return decodeJSONObject(raw)
	}

	var payload []byte
	switch rdr.Dtype {
	case "u1":
		b, err := rdr.GetUint8()
		if err != nil {
			return map[string]any{}
		}
		payload = b
	case "i1":
		b, err := rdr.GetInt8()
		if err != nil {
			return map[string]any{}
		}
		payload = make([]byte, len(b))
		for i, v := range b {
			payload[i] = byte(v)
		}
	default:
		return map[string]any{}
	}
	return decodeJSONObject(payload)
}

// decodeJSONObject decodes a JSON object, preserving numbers as json.Number.
func decodeJSONObject(b []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// ClassIndex extracts an integer-like "class_idx" from resolved metadata.
// Returns nil when the field is missing, null, or cannot be read as an integer.
func ClassIndex(meta map[string]any) *int {
	v, ok := meta["class_idx"]
	if !ok || v == nil {
		return nil
	}

	var n int
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			if i < math.MinInt || i > math.MaxInt {
				return nil
			}
			n = int(i)
		} else if f, err := val.Float64(); err == nil {
			i, ok := wholeInt(f)
			if !ok {
				return nil
			}
			n = i
		} else {
			return nil
		}
	case float64:
		i, ok := wholeInt(val)
		if !ok {
			return nil
		}
		n = i
	case int:
		n = val
	case int64:
		if val < math.MinInt || val > math.MaxInt {
			return nil
		}
		n = int(val)
	case bool:
		if val {
			n = 1
		}
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

// wholeInt converts f when it is a whole number inside the int range.
func wholeInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// StringField returns meta[key] as a string, or "" when absent or not a string.
func StringField(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}
