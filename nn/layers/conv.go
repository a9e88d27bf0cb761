package layers

import (
	"fmt"

	"golang.org/x/exp/rand"

	"capsnet/tensor"
)

// Padding modes for Conv2D.
const (
	PaddingValid = "valid"
	PaddingSame  = "same"
)

// Conv2D is a 2D convolutional layer over [batch, H, W, C] feature maps.
type Conv2D struct {
	inChan, outChan int // number of input/output channels
	kh, kw          int // kernel height and width
	stride          int
	padding         string

	W *tensor.Tensor // weights: [outChan, inChan, kh, kw]
	B *tensor.Tensor // bias: [outChan]
}

// NewConv2D creates a new Conv2D layer with kernel-initialized weights.
func NewConv2D(inChan, outChan, kernel, stride int, padding, kernelInitializer string, rng *rand.Rand) (*Conv2D, error) {
	if inChan <= 0 || outChan <= 0 || kernel <= 0 || stride <= 0 {
		return nil, fmt.Errorf("conv2d: non-positive dimension (in=%d out=%d kernel=%d stride=%d)",
			inChan, outChan, kernel, stride)
	}
	if padding != PaddingValid && padding != PaddingSame {
		return nil, fmt.Errorf("conv2d: unknown padding %q", padding)
	}
	init, err := GetInitializer(kernelInitializer)
	if err != nil {
		return nil, fmt.Errorf("conv2d: %w", err)
	}
	c := &Conv2D{
		inChan:  inChan,
		outChan: outChan,
		kh:      kernel,
		kw:      kernel,
		stride:  stride,
		padding: padding,
		W:       tensor.New(outChan, inChan, kernel, kernel),
		B:       tensor.New(outChan),
	}
	fanIn := inChan * kernel * kernel
	fanOut := outChan * kernel * kernel
	init(c.W, fanIn, fanOut, rng)
	return c, nil
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int { return c.outChan }

// OutputSize returns the spatial output size for a given input size.
func (c *Conv2D) OutputSize(h, w int) (outH, outW int, err error) {
	if c.padding == PaddingSame {
		outH = (h + c.stride - 1) / c.stride
		outW = (w + c.stride - 1) / c.stride
		return outH, outW, nil
	}
	if h < c.kh || w < c.kw {
		return 0, 0, fmt.Errorf("conv2d: input %dx%d smaller than kernel %dx%d", h, w, c.kh, c.kw)
	}
	outH = (h-c.kh)/c.stride + 1
	outW = (w-c.kw)/c.stride + 1
	return outH, outW, nil
}

// Forward convolves x [batch, H, W, inChan] into [batch, outH, outW, outChan].
func (c *Conv2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("conv2d: expected rank-4 input [batch, H, W, C], got shape %v", x.Shape)
	}
	batch, h, w, ch := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if ch != c.inChan {
		return nil, fmt.Errorf("conv2d: input has %d channels, layer expects %d", ch, c.inChan)
	}
	outH, outW, err := c.OutputSize(h, w)
	if err != nil {
		return nil, err
	}

	padTop, padLeft := 0, 0
	if c.padding == PaddingSame {
		padH := (outH-1)*c.stride + c.kh - h
		padW := (outW-1)*c.stride + c.kw - w
		if padH < 0 {
			padH = 0
		}
		if padW < 0 {
			padW = 0
		}
		padTop = padH / 2
		padLeft = padW / 2
	}

	out := tensor.New(batch, outH, outW, c.outChan)
	for b := 0; b < batch; b++ {
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				for oc := 0; oc < c.outChan; oc++ {
					sum := c.B.Data[oc]
					for ky := 0; ky < c.kh; ky++ {
						ih := oh*c.stride + ky - padTop
						if ih < 0 || ih >= h {
							continue
						}
						for kx := 0; kx < c.kw; kx++ {
							iw := ow*c.stride + kx - padLeft
							if iw < 0 || iw >= w {
								continue
							}
							for ic := 0; ic < c.inChan; ic++ {
								xv := x.Data[((b*h+ih)*w+iw)*ch+ic]
								wv := c.W.Data[((oc*c.inChan+ic)*c.kh+ky)*c.kw+kx]
								sum += xv * wv
							}
						}
					}
					out.Data[((b*outH+oh)*outW+ow)*c.outChan+oc] = sum
				}
			}
		}
	}
	return out, nil
}

func (c *Conv2D) Tag() string {
	return fmt.Sprintf("Conv2D_%d_%d_k%ds%d", c.inChan, c.outChan, c.kh, c.stride)
}
