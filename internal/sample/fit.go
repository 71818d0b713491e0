package sample

import "fmt"

// Fit reconciles a rank-2 array to exactly t rows.
//
//   - T' >= t: the first t rows are kept, the rest are dropped.
//   - T' < t: zero rows are appended at the end up to t.
//
// The input array is never modified. D is preserved.
func Fit(a Array, t int) (Array, error) {
	rows, d, ok := a.Dims()
	if !ok {
		return Array{}, fmt.Errorf("sample: fit requires rank-2 array, got shape %s", a.ShapeString())
	}
	if t < 0 {
		return Array{}, fmt.Errorf("sample: fit target %d is negative", t)
	}

	out := NewArray(t, d)
	n := rows
	if n > t {
		n = t
	}
	copy(out.Data, a.Data[:n*d])
	return out, nil
}
