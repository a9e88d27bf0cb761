package layers

import (
	"fmt"
	"math"

	"capsnet/tensor"
)

// route runs routing-by-agreement over a prediction tensor
// hat [batch, numCapsule, inputNumCapsule, dimCapsule] and returns the final
// output capsules [batch, numCapsule, dimCapsule].
//
// The logits start at zero on every invocation and are rebuilt as a fresh
// tensor per iteration, so concurrent forward passes never share state. The
// agreement update is skipped on the last iteration: the returned output is
// the squashed weighted sum under the final coupling coefficients.
func route(hat *tensor.Tensor, routings int) (*tensor.Tensor, error) {
	if len(hat.Shape) != 4 {
		return nil, fmt.Errorf("route: expected rank-4 predictions, got shape %v", hat.Shape)
	}
	if routings <= 0 {
		return nil, fmt.Errorf("route: routings must be > 0, got %d", routings)
	}
	batch, num, inNum, dim := hat.Shape[0], hat.Shape[1], hat.Shape[2], hat.Shape[3]

	logits := tensor.New(batch, num, inNum)
	var out *tensor.Tensor
	for it := 0; it < routings; it++ {
		c := couplings(logits)

		// Weighted sum of predictions over the input-capsule axis, squashed
		// along the pose axis.
		s := tensor.New(batch, num, dim)
		for b := 0; b < batch; b++ {
			for j := 0; j < num; j++ {
				cOff := (b*num + j) * inNum
				sOff := (b*num + j) * dim
				for i := 0; i < inNum; i++ {
					cv := c.Data[cOff+i]
					hOff := ((b*num+j)*inNum + i) * dim
					for d := 0; d < dim; d++ {
						s.Data[sOff+d] += cv * hat.Data[hOff+d]
					}
				}
			}
		}
		var err error
		out, err = Squash(s, -1)
		if err != nil {
			return nil, err
		}

		if it < routings-1 {
			// Agreement step: predictions that align with the current output
			// raise their coupling for the next iteration. A similarity
			// accumulation, not a gradient step; no parameters involved.
			next := logits.Clone()
			for b := 0; b < batch; b++ {
				for j := 0; j < num; j++ {
					oOff := (b*num + j) * dim
					lOff := (b*num + j) * inNum
					for i := 0; i < inNum; i++ {
						hOff := ((b*num+j)*inNum + i) * dim
						dot := 0.0
						for d := 0; d < dim; d++ {
							dot += hat.Data[hOff+d] * out.Data[oOff+d]
						}
						next.Data[lOff+i] += dot
					}
				}
			}
			logits = next
		}
	}
	return out, nil
}

// couplings softmax-normalizes routing logits [batch, num, inNum] along the
// output-capsule axis (axis 1): each input capsule distributes a unit vote
// across all output capsules. Normalizing along the input axis instead is the
// classic routing bug.
func couplings(logits *tensor.Tensor) *tensor.Tensor {
	batch, num, inNum := logits.Shape[0], logits.Shape[1], logits.Shape[2]
	c := tensor.New(batch, num, inNum)
	for b := 0; b < batch; b++ {
		for i := 0; i < inNum; i++ {
			maxLogit := math.Inf(-1)
			for j := 0; j < num; j++ {
				if v := logits.Data[(b*num+j)*inNum+i]; v > maxLogit {
					maxLogit = v
				}
			}
			expSum := 0.0
			for j := 0; j < num; j++ {
				e := math.Exp(logits.Data[(b*num+j)*inNum+i] - maxLogit)
				c.Data[(b*num+j)*inNum+i] = e
				expSum += e
			}
			for j := 0; j < num; j++ {
				c.Data[(b*num+j)*inNum+i] /= expSum
			}
		}
	}
	return c
}
