// Package customvision - Custom Vision exported object detector.
package customvision

import (
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/model"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
	"github.com/nvr-ai/go-arlocalize/models/yolo"
)

const (
	// InputSize is the side of the square network input.
	InputSize = 512
	// GridSize is the number of cells along each side of the output.
	GridSize = InputSize / 32
)

// Anchors is the Custom Vision anchor table, in grid cells.
var Anchors = []yolo.Anchor{
	{Width: 0.573, Height: 0.677},
	{Width: 1.87, Height: 2.06},
	{Width: 3.34, Height: 5.47},
	{Width: 7.88, Height: 3.53},
	{Width: 9.77, Height: 9.17},
}

// CustomVision is the instance of the Custom Vision model.
type CustomVision struct {
	*model.Detector
}

// Config returns the preset configuration. The class count is filled in from
// the label table when the model is created.
func Config() model.Config {
	return model.Config{
		Name:   model.ModelNameCustomVision,
		Family: model.ModelFamilyCustomVision,
		Input: images.InputOptions{
			Size:   InputSize,
			Mean:   0,
			Std:    1,
			Layout: images.ChannelsFirst,
			BGR:    true,
		},
		Inputs:  []string{"data"},
		Outputs: []string{"model_outputs0"},
		Scales: []yolo.Scale{{
			Grid: yolo.Grid{
				Rows:         GridSize,
				Cols:         GridSize,
				CellWidth:    32,
				CellHeight:   32,
				BoxesPerCell: len(Anchors),
			},
		}},
		Anchors: Anchors,
		Decoder: yolo.Config{
			Convention:           yolo.Normalized,
			Layout:               images.ChannelsFirst,
			AnchorUnit:           yolo.Cells,
			ProbabilityThreshold: 0.1,
		},
		NMS: postprocess.NMSConfig{
			Strategy:             postprocess.StrategyPerClass,
			IoUThreshold:         0.45,
			ProbabilityThreshold: 0.1,
			Limit:                20,
		},
	}
}

// NewModel creates a new Custom Vision model.
//
// Arguments:
//   - args: The arguments for creating a new model. Labels are required.
//
// Returns:
//   - The model.
//   - An error if the label table does not fit the preset.
func NewModel(args model.NewModelArgs) (*CustomVision, error) {
	d, err := model.NewDetector(args.Apply(Config()), args.Labels, args.Logger)
	if err != nil {
		return nil, err
	}
	return &CustomVision{Detector: d}, nil
}
