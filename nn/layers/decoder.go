package layers

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"capsnet/tensor"
)

// Default hidden widths of the reconstruction decoder.
const (
	DecoderHidden1 = 512
	DecoderHidden2 = 1024
)

// Decoder is the feed-forward reconstruction network: it consumes the masked
// flattened capsule vector and produces a flat reconstruction of the original
// input. Dense(relu) -> Dense(relu) -> Dense(sigmoid).
type Decoder struct {
	InputDim  int
	OutputDim int

	layers []denseLayer
}

type denseLayer struct {
	w          *mat.Dense // [in, out]
	b          []float64  // [out]
	activation string
}

// NewDecoder creates the decoder for a given capsule vector size and
// reconstruction size.
func NewDecoder(inputDim, outputDim int, rng *rand.Rand) (*Decoder, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("decoder: non-positive dimensions (in=%d out=%d)", inputDim, outputDim)
	}
	d := &Decoder{InputDim: inputDim, OutputDim: outputDim}
	dims := []int{inputDim, DecoderHidden1, DecoderHidden2, outputDim}
	acts := []string{"relu", "relu", "sigmoid"}
	for i := 0; i < 3; i++ {
		in, out := dims[i], dims[i+1]
		wt := tensor.New(in, out)
		glorotUniform(wt, in, out, rng)
		d.layers = append(d.layers, denseLayer{
			w:          mat.NewDense(in, out, wt.Data),
			b:          make([]float64, out),
			activation: acts[i],
		})
	}
	return d, nil
}

// Forward maps [batch, InputDim] to [batch, OutputDim]. A rank-1 input is
// treated as a batch of one.
func (d *Decoder) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	batch := 1
	switch len(x.Shape) {
	case 1:
		if x.Shape[0] != d.InputDim {
			return nil, fmt.Errorf("decoder: input size %d, want %d", x.Shape[0], d.InputDim)
		}
	case 2:
		if x.Shape[1] != d.InputDim {
			return nil, fmt.Errorf("decoder: input width %d, want %d", x.Shape[1], d.InputDim)
		}
		batch = x.Shape[0]
	default:
		return nil, fmt.Errorf("decoder: expected rank-1 or rank-2 input, got shape %v", x.Shape)
	}

	h := mat.NewDense(batch, d.InputDim, append([]float64(nil), x.Data...))
	for _, l := range d.layers {
		h = dot(h, l.w)
		h = apply(biasActivation(l.b, l.activation), h)
	}

	r, c := h.Dims()
	out := tensor.New(r, c)
	copy(out.Data, h.RawMatrix().Data)
	return out, nil
}

func dot(m, n *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func apply(fn func(i, j int, v float64) float64, m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func biasActivation(b []float64, activation string) func(i, j int, v float64) float64 {
	return func(i, j int, v float64) float64 {
		v += b[j]
		switch activation {
		case "relu":
			if v < 0 {
				return 0
			}
			return v
		case "sigmoid":
			return 1.0 / (1.0 + math.Exp(-v))
		default:
			return v
		}
	}
}

// NumDense returns the number of dense sublayers.
func (d *Decoder) NumDense() int { return len(d.layers) }

// DenseTensors exports sublayer i's weight [in, out] and bias [out].
func (d *Decoder) DenseTensors(i int) (w, b *tensor.Tensor, err error) {
	if i < 0 || i >= len(d.layers) {
		return nil, nil, fmt.Errorf("decoder: no dense sublayer %d", i)
	}
	l := d.layers[i]
	r, c := l.w.Dims()
	w = tensor.New(r, c)
	copy(w.Data, l.w.RawMatrix().Data)
	b = tensor.NewWithData(l.b)
	return w, b, nil
}

// SetDenseTensors replaces sublayer i's weight and bias, shape-checked.
func (d *Decoder) SetDenseTensors(i int, w, b *tensor.Tensor) error {
	if i < 0 || i >= len(d.layers) {
		return fmt.Errorf("decoder: no dense sublayer %d", i)
	}
	l := &d.layers[i]
	r, c := l.w.Dims()
	if len(w.Shape) != 2 || w.Shape[0] != r || w.Shape[1] != c {
		return fmt.Errorf("decoder: weight shape %v, want [%d, %d]", w.Shape, r, c)
	}
	if len(b.Shape) != 1 || b.Shape[0] != c {
		return fmt.Errorf("decoder: bias shape %v, want [%d]", b.Shape, c)
	}
	l.w = mat.NewDense(r, c, append([]float64(nil), w.Data...))
	l.b = append([]float64(nil), b.Data...)
	return nil
}

func (d *Decoder) Tag() string {
	return fmt.Sprintf("Decoder_%d_%d", d.InputDim, d.OutputDim)
}
