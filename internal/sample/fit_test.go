package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqOf builds a (t, d) array whose value at (i, j) is i*100+j+1.
func seqOf(t, d int) Array {
	a := NewArray(t, d)
	for i := 0; i < t; i++ {
		for j := 0; j < d; j++ {
			a.Data[i*d+j] = float32(i*100 + j + 1)
		}
	}
	return a
}

func TestFit_TruncateKeepsFirstRows(t *testing.T) {
	in := seqOf(75, 4)

	out, err := Fit(in, 60)
	require.NoError(t, err)

	assert.Equal(t, []int{60, 4}, out.Shape)
	for i := 0; i < 60; i++ {
		assert.Equal(t, in.Row(i), out.Row(i), "row %d", i)
	}
}

func TestFit_PadAppendsZeroRows(t *testing.T) {
	in := seqOf(45, 3)

	out, err := Fit(in, 60)
	require.NoError(t, err)

	assert.Equal(t, []int{60, 3}, out.Shape)
	for i := 0; i < 45; i++ {
		assert.Equal(t, in.Row(i), out.Row(i), "row %d", i)
	}
	for i := 45; i < 60; i++ {
		assert.Equal(t, []float32{0, 0, 0}, out.Row(i), "row %d", i)
	}
}

func TestFit_ExactIsCopy(t *testing.T) {
	in := seqOf(5, 2)

	out, err := Fit(in, 5)
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)

	out.Data[0] = -1
	assert.Equal(t, float32(1), in.Data[0], "Fit must not alias its input")
}

func TestFit_RejectsNonRank2(t *testing.T) {
	_, err := Fit(Array{Shape: []int{10}, Data: make([]float32, 10)}, 5)
	assert.Error(t, err)

	_, err = Fit(Array{Shape: []int{2, 2, 2}, Data: make([]float32, 8)}, 5)
	assert.Error(t, err)
}

func TestFromRows(t *testing.T) {
	a, err := FromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, a.Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.Data)

	_, err = FromRows([][]float32{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestArray_ShapeString(t *testing.T) {
	assert.Equal(t, "(60, 226)", NewArray(60, 226).ShapeString())
	assert.Equal(t, "(7,)", Array{Shape: []int{7}}.ShapeString())
}

func TestFromColumnMajor(t *testing.T) {
	// 2x3 matrix [[1 2 3] [4 5 6]] in Fortran order is 1 4 2 5 3 6.
	got := fromColumnMajor([]float32{1, 4, 2, 5, 3, 6}, []int{2, 3})
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got)
}
