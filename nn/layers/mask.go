package layers

import (
	"fmt"

	"capsnet/tensor"
)

// MaskInput selects the masking variant. With Labels set, the explicit
// one-hot rows pick the capsule to keep. With Labels nil, the capsule with
// the maximum length is kept instead (the prediction-time path).
type MaskInput struct {
	Capsules *tensor.Tensor // [batch, numCapsule, dimCapsule]
	Labels   *tensor.Tensor // optional one-hot, [batch, numCapsule]
}

// Mask zeroes every capsule except the selected one and flattens the result
// to [batch, numCapsule*dimCapsule], the reconstruction decoder's input.
type Mask struct{}

func (Mask) Forward(in MaskInput) (*tensor.Tensor, error) {
	x := in.Capsules
	if x == nil || len(x.Shape) != 3 {
		var shape []int
		if x != nil {
			shape = x.Shape
		}
		return nil, fmt.Errorf("mask: expected rank-3 capsules [batch, numCapsule, dimCapsule], got shape %v", shape)
	}
	batch, num, dim := x.Shape[0], x.Shape[1], x.Shape[2]

	mask := in.Labels
	if mask != nil {
		if len(mask.Shape) != 2 || mask.Shape[0] != batch || mask.Shape[1] != num {
			return nil, fmt.Errorf("mask: labels shape %v does not match capsules [%d, %d]",
				mask.Shape, batch, num)
		}
	} else {
		derived, err := maxLengthOneHot(x)
		if err != nil {
			return nil, err
		}
		mask = derived
	}

	out := tensor.New(batch, num*dim)
	for b := 0; b < batch; b++ {
		for j := 0; j < num; j++ {
			m := mask.Data[b*num+j]
			if m == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				out.Data[b*num*dim+j*dim+d] = m * x.Data[(b*num+j)*dim+d]
			}
		}
	}
	return out, nil
}

// maxLengthOneHot builds a one-hot [batch, num] selecting each sample's
// longest capsule. Ties resolve to the lowest index.
func maxLengthOneHot(x *tensor.Tensor) (*tensor.Tensor, error) {
	lengths, err := Length{}.Forward(x)
	if err != nil {
		return nil, err
	}
	batch, num := lengths.Shape[0], lengths.Shape[1]
	oneHot := tensor.New(batch, num)
	for b := 0; b < batch; b++ {
		best := 0
		for j := 1; j < num; j++ {
			if lengths.Data[b*num+j] > lengths.Data[b*num+best] {
				best = j
			}
		}
		oneHot.Data[b*num+best] = 1
	}
	return oneHot, nil
}

func (Mask) Tag() string { return "Mask" }
