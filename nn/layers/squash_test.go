package layers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsnet/tensor"
)

func vecNorm(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func TestSquash_NormBounds(t *testing.T) {
	// Rows of very different magnitude, squashed along the last axis
	in := tensor.New(4, 3)
	rows := [][]float64{
		{1e-6, 0, 0},
		{0.3, -0.4, 0.5},
		{3, 4, 0},
		{1e3, -1e3, 1e3},
	}
	for i, r := range rows {
		copy(in.Data[i*3:], r)
	}

	out, err := Squash(in, -1)
	require.NoError(t, err)
	require.Equal(t, in.Shape, out.Shape)

	for i := range rows {
		n := vecNorm(out.Data[i*3 : i*3+3])
		assert.GreaterOrEqual(t, n, 0.0)
		assert.Less(t, n, 1.0, "squashed norm must stay below 1")
	}

	// Large inputs approach unit length, tiny ones collapse toward zero
	assert.Less(t, vecNorm(out.Data[0:3]), 1e-5)
	assert.Greater(t, vecNorm(out.Data[9:12]), 0.99)
}

func TestSquash_ZeroVector(t *testing.T) {
	in := tensor.New(1, 4)
	out, err := Squash(in, -1)
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.Equal(t, 0.0, v, "squash(0) must be exactly 0")
	}
}

func TestSquash_PreservesDirection(t *testing.T) {
	in := &tensor.Tensor{Data: []float64{2, -1, 0.5}, Shape: []int{1, 3}}
	out, err := Squash(in, -1)
	require.NoError(t, err)

	// Cosine between input and output should be 1
	dot, ni, no := 0.0, vecNorm(in.Data), vecNorm(out.Data)
	for i := range in.Data {
		dot += in.Data[i] * out.Data[i]
	}
	assert.InDelta(t, 1.0, dot/(ni*no), 1e-9)
}

func TestSquash_AxisSelection(t *testing.T) {
	// [2, 3]: squashing along axis 0 treats columns as vectors
	in := &tensor.Tensor{Data: []float64{3, 0, 0, 4, 0, 0}, Shape: []int{2, 3}}

	out0, err := Squash(in, 0)
	require.NoError(t, err)
	// Column 0 is (3, 4): norm 5, squashed scale 25/26/5
	scale := 25.0 / 26.0 / math.Sqrt(25.0+Epsilon)
	assert.InDelta(t, 3*scale, out0.At(0, 0), 1e-9)
	assert.InDelta(t, 4*scale, out0.At(1, 0), 1e-9)
	// Zero columns stay zero
	assert.Equal(t, 0.0, out0.At(0, 1))

	// Negative axis counts from the end
	outNeg, err := Squash(in, -2)
	require.NoError(t, err)
	assert.Equal(t, out0.Data, outNeg.Data)

	_, err = Squash(in, 2)
	assert.Error(t, err)
	_, err = Squash(in, -3)
	assert.Error(t, err)
}

func TestSquash_MonotoneInNorm(t *testing.T) {
	// Output norm grows with input norm
	prev := -1.0
	for _, scale := range []float64{0.1, 0.5, 1, 2, 10} {
		in := &tensor.Tensor{Data: []float64{scale, scale}, Shape: []int{1, 2}}
		out, err := Squash(in, -1)
		require.NoError(t, err)
		n := vecNorm(out.Data)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestSquash_FiveAxisLayout(t *testing.T) {
	// Routing's intermediate layout squashes a middle axis
	in := tensor.New(2, 3, 1, 4, 1)
	for i := range in.Data {
		in.Data[i] = float64(i%7) - 3
	}
	out, err := Squash(in, 3)
	require.NoError(t, err)
	require.Equal(t, in.Shape, out.Shape)
	for o := 0; o < 6; o++ {
		n := vecNorm(out.Data[o*4 : o*4+4])
		assert.Less(t, n, 1.0)
	}
}
