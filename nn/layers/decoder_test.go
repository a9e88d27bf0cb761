package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"capsnet/tensor"
)

func TestDecoder_ShapeAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	d, err := NewDecoder(48, 64, rng)
	require.NoError(t, err)

	x := tensor.New(3, 48)
	for i := range x.Data {
		x.Data[i] = float64(i%7)*0.1 - 0.3
	}
	out, err := d.Forward(x)
	require.NoError(t, err)
	require.Equal(t, []int{3, 64}, out.Shape)
	for _, v := range out.Data {
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 1.0, "sigmoid head keeps reconstructions in (0, 1)")
	}
}

func TestDecoder_SingleVectorInput(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	d, err := NewDecoder(8, 16, rng)
	require.NoError(t, err)

	out, err := d.Forward(tensor.New(8))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 16}, out.Shape, "rank-1 input is a batch of one")
}

func TestDecoder_Deterministic(t *testing.T) {
	x := tensor.New(2, 8)
	for i := range x.Data {
		x.Data[i] = float64(i) * 0.05
	}
	a, err := NewDecoder(8, 16, rand.New(rand.NewSource(11)))
	require.NoError(t, err)
	b, err := NewDecoder(8, 16, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	outA, err := a.Forward(x)
	require.NoError(t, err)
	outB, err := b.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, outA.Data, outB.Data)
}

func TestDecoder_DenseTensorRoundTrip(t *testing.T) {
	a, err := NewDecoder(8, 16, rand.New(rand.NewSource(12)))
	require.NoError(t, err)
	b, err := NewDecoder(8, 16, rand.New(rand.NewSource(99)))
	require.NoError(t, err)

	require.Equal(t, 3, a.NumDense())
	for i := 0; i < a.NumDense(); i++ {
		w, bias, err := a.DenseTensors(i)
		require.NoError(t, err)
		require.NoError(t, b.SetDenseTensors(i, w, bias))
	}

	x := tensor.New(1, 8)
	for i := range x.Data {
		x.Data[i] = 0.1 * float64(i)
	}
	outA, err := a.Forward(x)
	require.NoError(t, err)
	outB, err := b.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, outA.Data, outB.Data, "copied weights must reproduce outputs")
}

func TestDecoder_Errors(t *testing.T) {
	_, err := NewDecoder(0, 16, nil)
	assert.Error(t, err)

	d, err := NewDecoder(8, 16, nil)
	require.NoError(t, err)
	_, err = d.Forward(tensor.New(2, 9))
	assert.Error(t, err, "wrong input width must be rejected")
	_, err = d.Forward(tensor.New(1, 2, 8))
	assert.Error(t, err, "rank-3 input must be rejected")

	_, _, err = d.DenseTensors(3)
	assert.Error(t, err)
	assert.Error(t, d.SetDenseTensors(0, tensor.New(9, DecoderHidden1), tensor.New(DecoderHidden1)))
	assert.Error(t, d.SetDenseTensors(0, tensor.New(8, DecoderHidden1), tensor.New(7)))
}
