package layers

import (
	"fmt"

	"golang.org/x/exp/rand"

	"capsnet/tensor"
)

// CapsuleLayer is the fully-connected capsule layer. Like a Dense layer it
// connects every input unit to every output unit, except the units are pose
// vectors: input shape [batch, inputNumCapsule, inputDimCapsule], output
// shape [batch, numCapsule, dimCapsule]. Each (output, input) capsule pair
// owns its own dimCapsule×inputDimCapsule transform matrix, and the outputs
// are produced by routing-by-agreement over the per-pair predictions.
type CapsuleLayer struct {
	NumCapsule int
	DimCapsule int
	Routings   int

	// W is the transform weight, [numCapsule, inputNumCapsule, dimCapsule,
	// inputDimCapsule]. Allocated on Build once the input geometry is known.
	W *tensor.Tensor

	inputNumCapsule int
	inputDimCapsule int

	kernelInit Initializer
	rng        *rand.Rand
}

// NewCapsuleLayer validates the layer configuration. A non-positive routings
// count is a construction error, not something Forward tolerates later.
func NewCapsuleLayer(numCapsule, dimCapsule, routings int, kernelInitializer string, rng *rand.Rand) (*CapsuleLayer, error) {
	if numCapsule <= 0 || dimCapsule <= 0 {
		return nil, fmt.Errorf("capsule: non-positive capsule geometry (num=%d dim=%d)", numCapsule, dimCapsule)
	}
	if routings <= 0 {
		return nil, fmt.Errorf("capsule: routings must be > 0, got %d", routings)
	}
	init, err := GetInitializer(kernelInitializer)
	if err != nil {
		return nil, fmt.Errorf("capsule: %w", err)
	}
	return &CapsuleLayer{
		NumCapsule: numCapsule,
		DimCapsule: dimCapsule,
		Routings:   routings,
		kernelInit: init,
		rng:        rng,
	}, nil
}

// Build allocates and initializes W for the given input capsule geometry.
func (l *CapsuleLayer) Build(inputNumCapsule, inputDimCapsule int) error {
	if inputNumCapsule <= 0 || inputDimCapsule <= 0 {
		return fmt.Errorf("capsule: non-positive input geometry (num=%d dim=%d)", inputNumCapsule, inputDimCapsule)
	}
	l.inputNumCapsule = inputNumCapsule
	l.inputDimCapsule = inputDimCapsule
	l.W = tensor.New(l.NumCapsule, inputNumCapsule, l.DimCapsule, inputDimCapsule)
	// Fan is per pair matrix: each (j,i) transform maps inputDim -> dim.
	l.kernelInit(l.W, inputDimCapsule, l.DimCapsule, l.rng)
	return nil
}

// SetWeights replaces W, checking the expected 4-axis shape.
func (l *CapsuleLayer) SetWeights(w *tensor.Tensor) error {
	if len(w.Shape) != 4 {
		return fmt.Errorf("capsule: weights must be rank 4, got shape %v", w.Shape)
	}
	if w.Shape[0] != l.NumCapsule || w.Shape[2] != l.DimCapsule {
		return fmt.Errorf("capsule: weight shape %v does not match layer (num=%d dim=%d)",
			w.Shape, l.NumCapsule, l.DimCapsule)
	}
	l.W = w.Clone()
	l.inputNumCapsule = w.Shape[1]
	l.inputDimCapsule = w.Shape[3]
	return nil
}

// Forward transforms input capsules [batch, inputNum, inputDim] into output
// capsules [batch, numCapsule, dimCapsule]. The layer builds its weights on
// first use; once built, the input geometry is fixed.
func (l *CapsuleLayer) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 3 {
		return nil, fmt.Errorf("capsule: expected rank-3 input [batch, numCapsule, dimCapsule], got shape %v", x.Shape)
	}
	inNum, inDim := x.Shape[1], x.Shape[2]
	if l.W == nil {
		if err := l.Build(inNum, inDim); err != nil {
			return nil, err
		}
	} else if inNum != l.inputNumCapsule || inDim != l.inputDimCapsule {
		return nil, fmt.Errorf("capsule: input geometry [%d, %d] does not match built weights [%d, %d]",
			inNum, inDim, l.inputNumCapsule, l.inputDimCapsule)
	}
	hat := l.predictions(x)
	return route(hat, l.Routings)
}

// predictions computes inputs_hat[b,j,i,:] = W[j,i,:,:] · x[b,i,:], one
// distinct matrix per (output, input) pair, broadcast over the batch. W and
// the result stay fixed for the rest of the forward pass; only the routing
// logits evolve.
func (l *CapsuleLayer) predictions(x *tensor.Tensor) *tensor.Tensor {
	batch := x.Shape[0]
	num, inNum := l.NumCapsule, l.inputNumCapsule
	dim, inDim := l.DimCapsule, l.inputDimCapsule

	hat := tensor.New(batch, num, inNum, dim)
	for b := 0; b < batch; b++ {
		for j := 0; j < num; j++ {
			for i := 0; i < inNum; i++ {
				xOff := (b*inNum + i) * inDim
				wOff := (j*inNum + i) * dim * inDim
				hOff := ((b*num+j)*inNum + i) * dim
				for d := 0; d < dim; d++ {
					sum := 0.0
					wRow := wOff + d*inDim
					for k := 0; k < inDim; k++ {
						sum += l.W.Data[wRow+k] * x.Data[xOff+k]
					}
					hat.Data[hOff+d] = sum
				}
			}
		}
	}
	return hat
}

func (l *CapsuleLayer) Tag() string {
	return fmt.Sprintf("CapsuleLayer_%d_%d_r%d", l.NumCapsule, l.DimCapsule, l.Routings)
}
