package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/signbank/internal/sample"
)

// Hands are flattened in this order, each point as x, y, z.
var handKeys = []string{"left_hand", "right_hand"}

// Frame is one captured camera frame.
//
// Landmarks is either a flat numeric list or an object with "left_hand"
// and "right_hand" point lists. Any other key (pose, face) is ignored.
type Frame struct {
	Timestamp float64         `json:"timestamp"`
	Landmarks json.RawMessage `json:"landmarks"`
}

type point struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// errMissingLandmarks marks a frame without a landmarks value.
var errMissingLandmarks = errors.New("frame missing landmarks")

// Flatten converts one frame's landmarks into a feature vector.
// Null points become three zeros; missing coordinates become zero.
func Flatten(raw json.RawMessage) ([]float32, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errMissingLandmarks
	}

	switch trimmed[0] {
	case '[':
		var values []float32
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return nil, fmt.Errorf("landmarks list: %w", err)
		}
		return values, nil
	case '{':
		var hands map[string][]*point
		if err := json.Unmarshal(trimmed, &hands); err != nil {
			return nil, fmt.Errorf("landmarks object: %w", err)
		}
		var out []float32
		for _, key := range handKeys {
			for _, p := range hands[key] {
				if p == nil {
					out = append(out, 0, 0, 0)
					continue
				}
				out = append(out, coord(p.X), coord(p.Y), coord(p.Z))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported landmarks value %.20q", trimmed)
	}
}

func coord(v *float64) float32 {
	if v == nil {
		return 0
	}
	return float32(*v)
}

// BuildSequence stacks flattened frames into a (frames, D) array where D is
// the widest frame; narrower frames are zero-padded on the right.
func BuildSequence(frames []Frame) (sample.Array, error) {
	if len(frames) == 0 {
		return sample.Array{}, errors.New("no frames")
	}
	rows := make([][]float32, len(frames))
	width := 0
	for i, f := range frames {
		row, err := Flatten(f.Landmarks)
		if err != nil {
			return sample.Array{}, fmt.Errorf("frame %d: %w", i, err)
		}
		rows[i] = row
		width = max(width, len(row))
	}
	if width == 0 {
		return sample.Array{}, errors.New("frames carry no landmark values")
	}

	seq := sample.NewArray(len(rows), width)
	for i, row := range rows {
		copy(seq.Row(i), row)
	}
	return seq, nil
}

// Duration is the time spanned by the frames' timestamps.
func Duration(frames []Frame) float64 {
	if len(frames) < 2 {
		return 0
	}
	return frames[len(frames)-1].Timestamp - frames[0].Timestamp
}
