package layers

import (
	"fmt"
	"math"

	"capsnet/tensor"
)

// Length replaces each capsule's pose vector with its Euclidean norm,
// dropping the last axis: [batch, numCapsule, dimCapsule] becomes
// [batch, numCapsule]. The norms are usable directly as class-presence
// scores; argmax over them is the predicted class.
type Length struct{}

func (Length) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) < 2 {
		return nil, fmt.Errorf("length: expected rank >= 2, got shape %v", x.Shape)
	}
	dim := x.Shape[len(x.Shape)-1]
	out := tensor.New(x.Shape[:len(x.Shape)-1]...)
	for o := range out.Data {
		s2 := 0.0
		for d := 0; d < dim; d++ {
			v := x.Data[o*dim+d]
			s2 += v * v
		}
		out.Data[o] = math.Sqrt(s2 + Epsilon)
	}
	return out, nil
}

func (Length) Tag() string { return "Length" }
