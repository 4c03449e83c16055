package inference

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/model"
)

// SessionConfigFor derives tensor names and shapes from a model
// configuration. The configuration must come from a built model so that
// every grid carries its class count.
//
// Arguments:
//   - cfg: The model configuration.
//   - libPath: The ONNX Runtime shared library; empty uses GetSharedLibPath.
//
// Returns:
//   - SessionConfig: Input [1,size,size,3] or [1,3,size,size] and one
//     [1,rows,cols,channels] or [1,channels,rows,cols] output per scale,
//     following cfg.Input.Layout and cfg.Decoder.Layout.
//   - error: A wrapped common.ErrShapeMismatch if names and scales disagree.
func SessionConfigFor(cfg model.Config, libPath string) (SessionConfig, error) {
	if len(cfg.Inputs) != 1 {
		return SessionConfig{}, errors.Wrapf(common.ErrShapeMismatch, "%s: %d input names, want 1", cfg.Name, len(cfg.Inputs))
	}
	if len(cfg.Outputs) != len(cfg.Scales) {
		return SessionConfig{}, errors.Wrapf(common.ErrShapeMismatch,
			"%s: %d output names for %d scales", cfg.Name, len(cfg.Outputs), len(cfg.Scales))
	}

	size := int64(cfg.Input.Size)
	input := []int64{1, size, size, 3}
	if cfg.Input.Layout == images.ChannelsFirst {
		input = []int64{1, 3, size, size}
	}

	outputs := make([]OutputSpec, len(cfg.Scales))
	for i, s := range cfg.Scales {
		if s.Grid.ClassCount <= 0 {
			return SessionConfig{}, errors.Wrapf(common.ErrClassCountMismatch, "%s: scale %d has no classes", cfg.Name, i)
		}
		rows, cols, ch := int64(s.Grid.Rows), int64(s.Grid.Cols), int64(s.Grid.Channels())
		shape := []int64{1, rows, cols, ch}
		if cfg.Decoder.Layout == images.ChannelsFirst {
			shape = []int64{1, ch, rows, cols}
		}
		outputs[i] = OutputSpec{Name: cfg.Outputs[i], Shape: shape}
	}

	return SessionConfig{
		ModelPath:   cfg.Path,
		LibraryPath: libPath,
		Backend:     BackendCPU,
		InputName:   cfg.Inputs[0],
		InputShape:  input,
		Outputs:     outputs,
	}, nil
}
