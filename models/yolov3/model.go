// Package yolov3 - YOLOv3-tiny model.
package yolov3

import (
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/model"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
	"github.com/nvr-ai/go-arlocalize/models/yolo"
)

const (
	// InputSize is the side of the square network input.
	InputSize = 416
	// BoxesPerCell is the number of anchor slots per cell on each scale.
	BoxesPerCell = 3
	// ClassCount is the number of COCO classes the network predicts.
	ClassCount = 80
	// MinimumConfidence is the candidate threshold. Suppression reuses it as
	// the overlap threshold.
	MinimumConfidence float32 = 0.25
)

// Anchors is the yolov3-tiny anchor table, in input pixels. The coarse grid
// uses the last three, the fine grid the first three.
var Anchors = []yolo.Anchor{
	{Width: 10, Height: 14},
	{Width: 23, Height: 27},
	{Width: 37, Height: 58},
	{Width: 81, Height: 82},
	{Width: 135, Height: 169},
	{Width: 344, Height: 319},
}

// YOLOv3 is the instance of the YOLOv3-tiny model.
type YOLOv3 struct {
	*model.Detector
}

// Config returns the preset configuration. A label table of any other length
// is rejected when the model is created.
func Config() model.Config {
	return model.Config{
		Name:   model.ModelNameYOLOv3Tiny,
		Family: model.ModelFamilyYOLO,
		Input: images.InputOptions{
			Size:   InputSize,
			Mean:   0,
			Std:    255,
			Layout: images.ChannelsLast,
		},
		Inputs:  []string{"input"},
		Outputs: []string{"output_l", "output_m"},
		Scales: []yolo.Scale{
			{
				Grid:         yolo.Grid{Rows: 13, Cols: 13, CellWidth: 32, CellHeight: 32, BoxesPerCell: BoxesPerCell, ClassCount: ClassCount},
				AnchorOffset: 3,
			},
			{
				Grid:         yolo.Grid{Rows: 26, Cols: 26, CellWidth: 16, CellHeight: 16, BoxesPerCell: BoxesPerCell, ClassCount: ClassCount},
				AnchorOffset: 0,
			},
		},
		Anchors: Anchors,
		Decoder: yolo.Config{
			Convention:           yolo.PixelSpace,
			Layout:               images.ChannelsLast,
			AnchorUnit:           yolo.Pixels,
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

// NewModel creates a new YOLOv3-tiny model.
//
// Arguments:
//   - args: The arguments for creating a new model. Labels are required.
//
// Returns:
//   - The model.
//   - An error if the label table does not fit the preset.
func NewModel(args model.NewModelArgs) (*YOLOv3, error) {
	d, err := model.NewDetector(args.Apply(Config()), args.Labels, args.Logger)
	if err != nil {
		return nil, err
	}
	return &YOLOv3{Detector: d}, nil
}
