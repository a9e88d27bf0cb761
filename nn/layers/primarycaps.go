package layers

import (
	"fmt"

	"golang.org/x/exp/rand"

	"capsnet/tensor"
)

// PrimaryCaps builds the first capsule set from a conventional feature map:
// a local convolutional projection to dimCapsule*nChannels channels, a
// reshape into [batch, numCapsules, dimCapsule], then Squash on the pose axis.
// The capsule count is derived from the conv output (outH*outW*nChannels),
// never declared independently.
type PrimaryCaps struct {
	dimCapsule int
	nChannels  int
	conv       *Conv2D
}

// NewPrimaryCaps creates the primary capsule builder for inChan-channel input maps.
func NewPrimaryCaps(inChan, dimCapsule, nChannels, kernel, stride int, padding string, rng *rand.Rand) (*PrimaryCaps, error) {
	if dimCapsule <= 0 || nChannels <= 0 {
		return nil, fmt.Errorf("primarycaps: non-positive capsule geometry (dim=%d channels=%d)", dimCapsule, nChannels)
	}
	conv, err := NewConv2D(inChan, dimCapsule*nChannels, kernel, stride, padding, "glorot_uniform", rng)
	if err != nil {
		return nil, fmt.Errorf("primarycaps: %w", err)
	}
	return &PrimaryCaps{dimCapsule: dimCapsule, nChannels: nChannels, conv: conv}, nil
}

// DimCapsule returns the pose dimension of the produced capsules.
func (p *PrimaryCaps) DimCapsule() int { return p.dimCapsule }

// Conv exposes the underlying projection for weight I/O.
func (p *PrimaryCaps) Conv() *Conv2D { return p.conv }

// NumCapsules returns the derived capsule count for an input of spatial size h×w.
func (p *PrimaryCaps) NumCapsules(h, w int) (int, error) {
	outH, outW, err := p.conv.OutputSize(h, w)
	if err != nil {
		return 0, err
	}
	return outH * outW * p.nChannels, nil
}

// Forward maps a feature map [batch, H, W, C] to capsules
// [batch, numCapsules, dimCapsule].
func (p *PrimaryCaps) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("primarycaps: expected rank-4 input [batch, H, W, C], got shape %v", x.Shape)
	}
	y, err := p.conv.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("primarycaps: %w", err)
	}
	// Channel axis is dimCapsule*nChannels wide; consecutive dimCapsule-sized
	// chunks become capsule pose vectors, so the reshape is a pure view.
	caps, err := y.Reshape(y.Shape[0], -1, p.dimCapsule)
	if err != nil {
		return nil, fmt.Errorf("primarycaps: %w", err)
	}
	return Squash(caps, -1)
}

func (p *PrimaryCaps) Tag() string {
	return fmt.Sprintf("PrimaryCaps_d%d_c%d", p.dimCapsule, p.nChannels)
}
