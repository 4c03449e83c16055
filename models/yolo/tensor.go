package yolo

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
)

// DecodeTensor decodes engine output tensors, one per configured scale.
//
// Arguments:
//   - outputs: float32 tensors whose element counts match the scale grids. The
//     shape itself is not inspected; only the element order matters.
//
// Returns:
//   - Candidates in scale, row, column, slot order.
//   - A wrapped common.ErrShapeMismatch on a count, size or dtype mismatch.
func (d *Decoder) DecodeTensor(outputs ...tensor.Tensor) ([]postprocess.Candidate, error) {
	bufs := make([][]float32, len(outputs))
	for i, t := range outputs {
		buf, err := Float32s(t)
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		bufs[i] = buf
	}
	return d.DecodeScales(bufs...)
}

// Float32s returns the backing values of a float32 tensor in row-major order.
// Views are materialized first.
func Float32s(t tensor.Tensor) ([]float32, error) {
	if t == nil {
		return nil, errors.Wrap(common.ErrShapeMismatch, "nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(common.ErrShapeMismatch, "expected float32 tensor, got %v", t.Dtype())
	}
	if v, ok := t.(tensor.View); ok && v.IsView() {
		t = v.Materialize()
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(common.ErrShapeMismatch, "tensor of shape %v has no float32 backing slice", t.Shape())
	}
	return data, nil
}
