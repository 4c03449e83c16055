// Package yolov2 - YOLOv2-tiny model.
package yolov2

import (
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/model"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
	"github.com/nvr-ai/go-arlocalize/models/yolo"
)

const (
	// InputSize is the side of the square network input.
	InputSize = 416
	// GridSize is the number of cells along each side of the output.
	GridSize = 13
	// BoxesPerCell is the number of anchor slots per cell.
	BoxesPerCell = 5
	// ClassCount is the number of Pascal VOC classes the network predicts.
	ClassCount = 20
	// MinimumConfidence is the candidate threshold. Suppression reuses it as
	// the overlap threshold.
	MinimumConfidence float32 = 0.25
)

// Anchors is the yolov2-tiny anchor table, in grid cells.
var Anchors = []yolo.Anchor{
	{Width: 0.57273, Height: 0.677385},
	{Width: 1.87446, Height: 2.06253},
	{Width: 3.33843, Height: 5.47434},
	{Width: 7.88282, Height: 3.52778},
	{Width: 9.77052, Height: 9.16828},
}

// YOLOv2 is the instance of the YOLOv2-tiny model.
type YOLOv2 struct {
	*model.Detector
}

// Config returns the preset configuration. A label table of any other length
// is rejected when the model is created.
func Config() model.Config {
	cell := float32(InputSize / GridSize)
	return model.Config{
		Name:   model.ModelNameYOLOv2Tiny,
		Family: model.ModelFamilyYOLO,
		Input: images.InputOptions{
			Size:   InputSize,
			Mean:   0,
			Std:    255,
			Layout: images.ChannelsLast,
		},
		Inputs:  []string{"input"},
		Outputs: []string{"output"},
		Scales: []yolo.Scale{{
			Grid: yolo.Grid{
				Rows:         GridSize,
				Cols:         GridSize,
				CellWidth:    cell,
				CellHeight:   cell,
				BoxesPerCell: BoxesPerCell,
				ClassCount:   ClassCount,
			},
		}},
		Anchors: Anchors,
		Decoder: yolo.Config{
			Convention:           yolo.PixelSpace,
			Layout:               images.ChannelsLast,
			AnchorUnit:           yolo.Cells,
			ProbabilityThreshold: MinimumConfidence,
			EarlyReject:          true,
		},
		NMS: postprocess.NMSConfig{
			Strategy:             postprocess.StrategyPerBox,
			IoUThreshold:         MinimumConfidence,
			ProbabilityThreshold: MinimumConfidence,
			Limit:                5,
		},
	}
}

// NewModel creates a new YOLOv2-tiny model.
//
// Arguments:
//   - args: The arguments for creating a new model. Labels are required.
//
// Returns:
//   - The model.
//   - An error if the label table does not fit the preset.
func NewModel(args model.NewModelArgs) (*YOLOv2, error) {
	d, err := model.NewDetector(args.Apply(Config()), args.Labels, args.Logger)
	if err != nil {
		return nil, err
	}
	return &YOLOv2{Detector: d}, nil
}
