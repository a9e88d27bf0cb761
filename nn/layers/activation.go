package layers

import (
	"fmt"

	"capsnet/tensor"
)

// SupportedActivations contains the element-wise activation functions.
var SupportedActivations = map[string]func(*tensor.Tensor) *tensor.Tensor{
	"relu":    tensor.ReluPlain,
	"sigmoid": tensor.SigmoidPlain,
}

// Activation is a layer that applies an element-wise function.
type Activation struct {
	name string
	fn   func(*tensor.Tensor) *tensor.Tensor
}

// NewActivation creates a new activation layer.
func NewActivation(name string) (*Activation, error) {
	fn, ok := SupportedActivations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{name: name, fn: fn}, nil
}

func (a *Activation) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return a.fn(x), nil
}

func (a *Activation) Tag() string {
	return "Activation_" + a.name
}
