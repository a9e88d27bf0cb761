package nn

import (
	"capsnet/tensor"
)

// Module defines a single layer/unit in the network.
type Module interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	Tag() string
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Tags lists the tags of all layers in order.
func (s *Sequential) Tags() []string {
	tags := make([]string, len(s.Layers))
	for i, layer := range s.Layers {
		tags[i] = layer.Tag()
	}
	return tags
}
