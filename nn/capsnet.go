package nn

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"capsnet/nn/layers"
	"capsnet/tensor"
	"capsnet/utils"
)

// CapsNet assembles the full capsule network: a conventional conv+relu front
// layer, the primary capsule builder, the routed capsule layer, and the
// reconstruction decoder fed through masking.
type CapsNet struct {
	Features  *Sequential // conv1 -> relu -> primary caps
	Conv1     *layers.Conv2D
	Primary   *layers.PrimaryCaps
	DigitCaps *layers.CapsuleLayer
	Decoder   *layers.Decoder

	// Stats, when set, accumulates per-stage forward timings.
	Stats *utils.TimingStats

	cfg *utils.Config
}

// NewCapsNet builds the network from a validated config. All weights are
// initialized at construction; the capsule layer's input geometry is derived
// from the config, so the transform weights exist before the first forward.
func NewCapsNet(cfg *utils.Config, rng *rand.Rand) (*CapsNet, error) {
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	conv1, err := layers.NewConv2D(cfg.Input.Channels, cfg.Conv1.Filters, cfg.Conv1.Kernel,
		cfg.Conv1.Stride, layers.PaddingValid, cfg.KernelInitializer, rng)
	if err != nil {
		return nil, err
	}
	relu, err := layers.NewActivation("relu")
	if err != nil {
		return nil, err
	}
	primary, err := layers.NewPrimaryCaps(cfg.Conv1.Filters, cfg.Primary.Dim, cfg.Primary.Channels,
		cfg.Primary.Kernel, cfg.Primary.Stride, layers.PaddingValid, rng)
	if err != nil {
		return nil, err
	}
	digit, err := layers.NewCapsuleLayer(cfg.Classes, cfg.CapsuleDim, cfg.Routings,
		cfg.KernelInitializer, rng)
	if err != nil {
		return nil, err
	}

	h1, w1, err := conv1.OutputSize(cfg.Input.Height, cfg.Input.Width)
	if err != nil {
		return nil, fmt.Errorf("conv1 geometry: %w", err)
	}
	numPrimary, err := primary.NumCapsules(h1, w1)
	if err != nil {
		return nil, fmt.Errorf("primary geometry: %w", err)
	}
	if err := digit.Build(numPrimary, cfg.Primary.Dim); err != nil {
		return nil, err
	}

	pixels := cfg.Input.Height * cfg.Input.Width * cfg.Input.Channels
	decoder, err := layers.NewDecoder(cfg.Classes*cfg.CapsuleDim, pixels, rng)
	if err != nil {
		return nil, err
	}

	return &CapsNet{
		Features:  &Sequential{Layers: []Module{conv1, relu, primary}},
		Conv1:     conv1,
		Primary:   primary,
		DigitCaps: digit,
		Decoder:   decoder,
		cfg:       cfg,
	}, nil
}

// Config returns the configuration the network was built from.
func (m *CapsNet) Config() *utils.Config { return m.cfg }

// Forward runs the encoder: feature map [batch, H, W, C] in, per-class
// capsule lengths [batch, classes] and digit capsules
// [batch, classes, capsuleDim] out.
func (m *CapsNet) Forward(x *tensor.Tensor) (lengths, caps *tensor.Tensor, err error) {
	if len(x.Shape) != 4 {
		return nil, nil, fmt.Errorf("capsnet: expected rank-4 input [batch, H, W, C], got shape %v", x.Shape)
	}
	if x.Shape[1] != m.cfg.Input.Height || x.Shape[2] != m.cfg.Input.Width || x.Shape[3] != m.cfg.Input.Channels {
		return nil, nil, fmt.Errorf("capsnet: input shape %v does not match configured input %dx%dx%d",
			x.Shape, m.cfg.Input.Height, m.cfg.Input.Width, m.cfg.Input.Channels)
	}

	start := time.Now()
	feats, err := m.Features.Forward(x)
	if err != nil {
		return nil, nil, err
	}
	if m.Stats != nil {
		m.Stats.FeatureTime += time.Since(start)
	}

	start = time.Now()
	caps, err = m.DigitCaps.Forward(feats)
	if err != nil {
		return nil, nil, err
	}
	if m.Stats != nil {
		m.Stats.RoutingTime += time.Since(start)
	}

	lengths, err = layers.Length{}.Forward(caps)
	if err != nil {
		return nil, nil, err
	}
	return lengths, caps, nil
}

// Reconstruct masks the digit capsules (by labels when given, by max length
// otherwise) and decodes the surviving pose vector into a flat
// reconstruction [batch, H*W*C].
func (m *CapsNet) Reconstruct(caps, labels *tensor.Tensor) (*tensor.Tensor, error) {
	masked, err := layers.Mask{}.Forward(layers.MaskInput{Capsules: caps, Labels: labels})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := m.Decoder.Forward(masked)
	if err != nil {
		return nil, err
	}
	if m.Stats != nil {
		m.Stats.DecoderTime += time.Since(start)
	}
	return out, nil
}

// Predict returns the argmax class per sample.
func (m *CapsNet) Predict(x *tensor.Tensor) ([]int, error) {
	lengths, _, err := m.Forward(x)
	if err != nil {
		return nil, err
	}
	batch, classes := lengths.Shape[0], lengths.Shape[1]
	preds := make([]int, batch)
	for b := 0; b < batch; b++ {
		best := 0
		for j := 1; j < classes; j++ {
			if lengths.Data[b*classes+j] > lengths.Data[b*classes+best] {
				best = j
			}
		}
		preds[b] = best
	}
	return preds, nil
}
