package postprocess

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-arlocalize/common"
)

// Logistic is the sigmoid function, evaluated so that neither branch
// overflows: exp is only ever taken of a non-positive argument.
func Logistic(x float32) float32 {
	if x > 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}

// Softmax normalizes values into a probability distribution.
//
// The maximum is subtracted before exponentiating so large logits do not
// overflow.
//
// Arguments:
//   - values: The raw logits.
//
// Returns:
//   - []float32: A new slice whose entries sum to 1.
//   - error: common.ErrEmptyInput if values is empty.
func Softmax(values []float32) ([]float32, error) {
	if len(values) == 0 {
		return nil, common.ErrEmptyInput
	}
	out := make([]float32, len(values))
	softmaxInto(out, values)
	return out, nil
}

// softmaxInto writes softmax(values) into dst. len(values) must be > 0.
func softmaxInto(dst, values []float32) {
	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range values {
		e := math32.Exp(v - maxVal)
		dst[i] = e
		sum += e
	}
	for i := range dst {
		dst[i] /= sum
	}
}

// ArgMax returns the index and value of the largest entry. The first index
// wins on ties; an empty slice yields (-1, 0).
func ArgMax(values []float32) (int, float32) {
	if len(values) == 0 {
		return -1, 0
	}
	best, bestVal := 0, values[0]
	for i, v := range values[1:] {
		if v > bestVal {
			best, bestVal = i+1, v
		}
	}
	return best, bestVal
}
