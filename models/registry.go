// Package models - registry for models.
package models

import (
	"fmt"

	"github.com/nvr-ai/go-arlocalize/models/customvision"
	"github.com/nvr-ai/go-arlocalize/models/model"
	"github.com/nvr-ai/go-arlocalize/models/yolov2"
	"github.com/nvr-ai/go-arlocalize/models/yolov3"
)

// NewModel creates a new detection model instance based on the specified model name.
//
// The factory routes requests to the preset constructors so callers get a
// model.Model without knowing which grid, anchors or suppression strategy the
// preset uses. When args.Labels is empty the preset's built-in label table is
// used, if it has one.
//
// Arguments:
//   - args: Configuration parameters specifying the model name, label table and overrides.
//
// Returns:
//   - model.Model: A fully configured model instance implementing the Model interface.
//   - error: An error if the model name is unsupported or the label table does not fit.
//
// Example:
//
// ```go
//
//	m, err := NewModel(model.NewModelArgs{
//	    Name: model.ModelNameYOLOv3Tiny,
//	    Path: "/models/yolov3-tiny.onnx",
//	})
//	if err != nil {
//	    log.Fatalf("Failed to create detection model: %v", err)
//	}
//
// ```
func NewModel(args model.NewModelArgs) (model.Model, error) {
	if len(args.Labels) == 0 {
		args.Labels = DefaultLabels(args.Name)
	}

	switch args.Name {
	case model.ModelNameYOLOv2Tiny:
		m, err := yolov2.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	case model.ModelNameYOLOv3Tiny:
		m, err := yolov3.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	case model.ModelNameCustomVision:
		m, err := customvision.NewModel(args)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported model name: %s", args.Name)
	}
}

// Names lists the supported model names.
func Names() []model.Name {
	return []model.Name{
		model.ModelNameYOLOv2Tiny,
		model.ModelNameYOLOv3Tiny,
		model.ModelNameCustomVision,
	}
}

// Preset returns the unmodified configuration of a named model.
func Preset(name model.Name) (model.Config, error) {
	switch name {
	case model.ModelNameYOLOv2Tiny:
		return yolov2.Config(), nil
	case model.ModelNameYOLOv3Tiny:
		return yolov3.Config(), nil
	case model.ModelNameCustomVision:
		return customvision.Config(), nil
	default:
		return model.Config{}, fmt.Errorf("unsupported model name: %s", name)
	}
}
