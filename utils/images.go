package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"capsnet/tensor"
)

// CombineImages tiles a batch of grayscale images [n, H, W] (or [n, H, W, 1])
// into one [rows*H, cols*W] grid. With rows and cols both zero the grid is
// near-square; with one given, the other is derived.
func CombineImages(batch *tensor.Tensor, rows, cols int) (*tensor.Tensor, error) {
	shape := batch.Shape
	if len(shape) == 4 && shape[3] == 1 {
		shape = shape[:3]
	}
	if len(shape) != 3 {
		return nil, fmt.Errorf("combine: expected [n, H, W] or [n, H, W, 1], got shape %v", batch.Shape)
	}
	n, h, w := shape[0], shape[1], shape[2]

	switch {
	case rows == 0 && cols == 0:
		cols = int(math.Sqrt(float64(n)))
		if cols == 0 {
			cols = 1
		}
		rows = (n + cols - 1) / cols
	case rows == 0:
		rows = (n + cols - 1) / cols
	case cols == 0:
		cols = (n + rows - 1) / rows
	}
	if rows*cols < n {
		return nil, fmt.Errorf("combine: %dx%d grid cannot hold %d images", rows, cols, n)
	}

	grid := tensor.New(rows*h, cols*w)
	for idx := 0; idx < n; idx++ {
		r, c := idx/cols, idx%cols
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				grid.Data[(r*h+y)*cols*w+c*w+x] = batch.Data[(idx*h+y)*w+x]
			}
		}
	}
	return grid, nil
}

// SavePNG writes a 2-D tensor as an 8-bit grayscale PNG, clamping values
// to [0, 1].
func SavePNG(img *tensor.Tensor, path string) error {
	if len(img.Shape) != 2 {
		return fmt.Errorf("savepng: expected 2-D image, got shape %v", img.Shape)
	}
	h, w := img.Shape[0], img.Shape[1]
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := img.Data[y*w+x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("savepng: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("savepng: %w", err)
	}
	return nil
}
