package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/models"
	"github.com/nvr-ai/go-arlocalize/models/model"
)

func TestSessionConfigFor(t *testing.T) {
	tests := []struct {
		name    string
		args    model.NewModelArgs
		input   []int64
		outputs []OutputSpec
	}{
		{
			name:  "yolov3 tiny is channels last with two scales",
			args:  model.NewModelArgs{Name: model.ModelNameYOLOv3Tiny, Path: "yolov3.onnx"},
			input: []int64{1, 416, 416, 3},
			outputs: []OutputSpec{
				{Name: "output_l", Shape: []int64{1, 13, 13, 255}},
				{Name: "output_m", Shape: []int64{1, 26, 26, 255}},
			},
		},
		{
			name:  "custom vision is channels first",
			args:  model.NewModelArgs{Name: model.ModelNameCustomVision, Path: "cv.onnx", Labels: []string{"a", "b"}},
			input: []int64{1, 3, 512, 512},
			outputs: []OutputSpec{
				{Name: "model_outputs0", Shape: []int64{1, 35, 16, 16}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := models.NewModel(tt.args)
			require.NoError(t, err)

			cfg, err := SessionConfigFor(m.Options(), "/lib/onnxruntime.so")
			require.NoError(t, err)
			assert.Equal(t, tt.args.Path, cfg.ModelPath)
			assert.Equal(t, "/lib/onnxruntime.so", cfg.LibraryPath)
			assert.Equal(t, tt.input, cfg.InputShape)
			assert.Equal(t, tt.outputs, cfg.Outputs)
		})
	}
}

func TestSessionConfigFor_Errors(t *testing.T) {
	m, err := models.NewModel(model.NewModelArgs{Name: model.ModelNameYOLOv2Tiny})
	require.NoError(t, err)

	cfg := m.Options()
	cfg.Outputs = append(cfg.Outputs, "extra")
	_, err = SessionConfigFor(cfg, "")
	assert.ErrorIs(t, err, common.ErrShapeMismatch)

	// Custom Vision takes its class count from the label table.
	preset, err := models.Preset(model.ModelNameCustomVision)
	require.NoError(t, err)
	_, err = SessionConfigFor(preset, "")
	assert.ErrorIs(t, err, common.ErrClassCountMismatch)
}

func TestSharedLibPath(t *testing.T) {
	assert.Equal(t, "./third_party/onnxruntime_arm64.so", sharedLibPath("linux", "arm64"))
	assert.Equal(t, "./third_party/onnxruntime.so", sharedLibPath("linux", "amd64"))
	assert.Equal(t, "./third_party/libonnxruntime.1.23.0.dylib", sharedLibPath("darwin", "arm64"))

	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	assert.Equal(t, "/opt/ort/libonnxruntime.so", GetSharedLibPath())
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(SessionConfig{}, nil)
	assert.Error(t, err)

	_, err = NewSession(SessionConfig{ModelPath: "m.onnx"}, nil)
	assert.Error(t, err)
}
