package sample

import (
	"fmt"
	"strings"
)

// Array is a dense numeric array stored row-major as float32.
type Array struct {
	Shape []int
	Data  []float32
}

// NewArray allocates a zero-filled (t, d) array.
func NewArray(t, d int) Array {
	return Array{Shape: []int{t, d}, Data: make([]float32, t*d)}
}

// FromRows builds a (len(rows), d) array. Every row must have length d.
func FromRows(rows [][]float32) (Array, error) {
	if len(rows) == 0 {
		return Array{Shape: []int{0, 0}}, nil
	}
	d := len(rows[0])
	a := NewArray(len(rows), d)
	for i, row := range rows {
		if len(row) != d {
			return Array{}, fmt.Errorf("sample: row %d has %d values, want %d", i, len(row), d)
		}
		copy(a.Data[i*d:(i+1)*d], row)
	}
	return a, nil
}

// Rank returns the number of dimensions.
func (a Array) Rank() int {
	return len(a.Shape)
}

// Dims returns (T, D) for a rank-2 array. ok is false for any other rank.
func (a Array) Dims() (t, d int, ok bool) {
	if len(a.Shape) != 2 {
		return 0, 0, false
	}
	return a.Shape[0], a.Shape[1], true
}

// Row returns row i of a rank-2 array. The slice aliases the array data.
func (a Array) Row(i int) []float32 {
	_, d, _ := a.Dims()
	return a.Data[i*d : (i+1)*d]
}

// Clone returns a deep copy.
func (a Array) Clone() Array {
	shape := append([]int(nil), a.Shape...)
	data := append([]float32(nil), a.Data...)
	return Array{Shape: shape, Data: data}
}

// ShapeString formats the shape the way NumPy prints it, e.g. "(60, 226)".
func (a Array) ShapeString() string {
	parts := make([]string, len(a.Shape))
	for i, n := range a.Shape {
		parts[i] = fmt.Sprintf("%d", n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// elements returns the element count implied by shape.
func elements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// fromColumnMajor reorders Fortran-ordered data into row-major order.
func fromColumnMajor(data []float32, shape []int) []float32 {
	if len(shape) < 2 {
		return data
	}
	out := make([]float32, len(data))
	idx := make([]int, len(shape))
	for rowMajor := range out {
		// Decompose the row-major offset into a multi-index.
		rem := rowMajor
		for k := len(shape) - 1; k >= 0; k-- {
			idx[k] = rem % shape[k]
			rem /= shape[k]
		}
		colMajor := 0
		stride := 1
		for k := 0; k < len(shape); k++ {
			colMajor += idx[k] * stride
			stride *= shape[k]
		}
		out[rowMajor] = data[colMajor]
	}
	return out
}
