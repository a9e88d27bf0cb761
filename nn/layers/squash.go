package layers

import (
	"fmt"
	"math"

	"capsnet/tensor"
)

// Epsilon is the numerical stability constant shared by Squash, Length and
// the max-length mask path. Matches the conventional backend epsilon.
const Epsilon = 1e-7

// resolveAxis maps a possibly negative axis onto [0, rank).
func resolveAxis(axis, rank int) (int, error) {
	ax := axis
	if ax < 0 {
		ax += rank
	}
	if ax < 0 || ax >= rank {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	return ax, nil
}

// spans splits a shape around an axis: outer × n × inner, where n is the
// axis length. Flat index of element k on the axis is (o*n+k)*inner+i.
func spans(shape []int, axis int) (outer, n, inner int) {
	outer, n, inner = 1, shape[axis], 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return
}

// Squash rescales every vector along the given axis to length
// ‖v‖²/(1+‖v‖²), keeping its direction. Output norms lie in [0, 1):
// large vectors approach unit length, small ones collapse toward zero.
// The axis may be negative to count from the last dimension.
func Squash(t *tensor.Tensor, axis int) (*tensor.Tensor, error) {
	ax, err := resolveAxis(axis, len(t.Shape))
	if err != nil {
		return nil, fmt.Errorf("squash: %w", err)
	}
	outer, n, inner := spans(t.Shape, ax)
	out := tensor.New(t.Shape...)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			s2 := 0.0
			for k := 0; k < n; k++ {
				v := t.Data[(o*n+k)*inner+i]
				s2 += v * v
			}
			scale := s2 / (1 + s2) / math.Sqrt(s2+Epsilon)
			for k := 0; k < n; k++ {
				idx := (o*n+k)*inner + i
				out.Data[idx] = scale * t.Data[idx]
			}
		}
	}
	return out, nil
}
