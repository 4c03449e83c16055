// Package model - Definitions shared by the detector model presets.
package model

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
	"github.com/nvr-ai/go-arlocalize/models/yolo"
)

// Family is the family of models.
type Family string

const (
	// ModelFamilyYOLO is the Darknet YOLO model family.
	ModelFamilyYOLO Family = "yolo"
	// ModelFamilyCustomVision is the Azure Custom Vision exported model family.
	ModelFamilyCustomVision Family = "customvision"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLOv2Tiny is the name of the YOLOv2-tiny model.
	ModelNameYOLOv2Tiny Name = "yolov2-tiny"
	// ModelNameYOLOv3Tiny is the name of the YOLOv3-tiny model.
	ModelNameYOLOv3Tiny Name = "yolov3-tiny"
	// ModelNameCustomVision is the name of the Custom Vision object detector.
	ModelNameCustomVision Name = "customvision"
)

// Config is everything a preset fixes about a model: how frames are fed to it
// and how its outputs are decoded and suppressed.
type Config struct {
	Name    Name
	Family  Family
	Path    string
	Input   images.InputOptions
	Inputs  []string
	Outputs []string
	Scales  []yolo.Scale
	Anchors []yolo.Anchor
	Decoder yolo.Config
	NMS     postprocess.NMSConfig
}

// CoordinateSize is the side of the square that decoded boxes live in: 1 for
// normalized output, the input size otherwise. Pass it to
// images.NewScreenTransform.
func (c Config) CoordinateSize() int {
	if c.Decoder.Convention == yolo.Normalized {
		return 1
	}
	return c.Input.Size
}

// Model is a detector whose raw outputs can be turned into detections.
type Model interface {
	Options() Config
	Labels() []string
	PostProcess(outputs []tensor.Tensor) ([]common.Detection, error)
}

// NewModelArgs is the arguments for creating a new model.
type NewModelArgs struct {
	Name    Name                   `json:"name" yaml:"name"`
	Path    string                 `json:"path" yaml:"path"`
	Labels  []string               `json:"labels" yaml:"labels"`
	NMS     *postprocess.NMSConfig `json:"nms" yaml:"nms"`
	Inputs  []string               `json:"inputs" yaml:"inputs"`
	Outputs []string               `json:"outputs" yaml:"outputs"`
	// ProbabilityThreshold overrides the preset's candidate threshold when positive.
	ProbabilityThreshold float32 `json:"probability_threshold" yaml:"probability_threshold"`
	// EarlyReject and Rotate90 override the preset when set.
	EarlyReject *bool `json:"early_reject" yaml:"early_reject"`
	Rotate90    *bool `json:"rotate90" yaml:"rotate90"`
	Logger      *zap.Logger
}

// Apply overlays the caller's overrides on a preset configuration.
func (a NewModelArgs) Apply(cfg Config) Config {
	if a.Path != "" {
		cfg.Path = a.Path
	}
	if len(a.Inputs) > 0 {
		cfg.Inputs = a.Inputs
	}
	if len(a.Outputs) > 0 {
		cfg.Outputs = a.Outputs
	}
	if a.NMS != nil {
		cfg.NMS = *a.NMS
	}
	if a.ProbabilityThreshold > 0 {
		cfg.Decoder.ProbabilityThreshold = a.ProbabilityThreshold
	}
	if a.EarlyReject != nil {
		cfg.Decoder.EarlyReject = *a.EarlyReject
	}
	if a.Rotate90 != nil {
		cfg.Input.Rotate90 = *a.Rotate90
	}
	return cfg
}

// Detector implements Model on top of the grid decoder and a suppressor.
// Presets embed it.
type Detector struct {
	options Config
	decoder *yolo.Decoder
	logger  *zap.Logger
}

// NewDetector builds the decoder for cfg.
//
// Arguments:
//   - cfg: The model configuration.
//   - labels: The label table. Scales with no class count take its length;
//     the rest must match it.
//   - logger: Logger for dropped outputs; nil disables logging.
//
// Returns:
//   - The detector.
//   - An error wrapping common.ErrClassCountMismatch or common.ErrShapeMismatch.
func NewDetector(cfg Config, labels []string, logger *zap.Logger) (*Detector, error) {
	if len(labels) == 0 {
		return nil, errors.Wrapf(common.ErrClassCountMismatch, "%s: empty label table", cfg.Name)
	}
	if len(cfg.Outputs) > 0 && len(cfg.Outputs) != len(cfg.Scales) {
		return nil, errors.Wrapf(common.ErrShapeMismatch,
			"%s: %d output names for %d scales", cfg.Name, len(cfg.Outputs), len(cfg.Scales))
	}

	scales := make([]yolo.Scale, len(cfg.Scales))
	for i, s := range cfg.Scales {
		if s.Grid.ClassCount == 0 {
			s.Grid.ClassCount = len(labels)
		}
		scales[i] = s
	}
	cfg.Scales = scales

	decoder, err := yolo.NewMultiScaleDecoder(scales, cfg.Anchors, labels, cfg.Decoder)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", cfg.Name)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		options: cfg,
		decoder: decoder,
		logger:  logger.With(zap.String("model", string(cfg.Name))),
	}, nil
}

// Options returns the model configuration.
func (d *Detector) Options() Config {
	return d.options
}

// Labels returns the label table.
func (d *Detector) Labels() []string {
	return d.decoder.Labels()
}

// PostProcess decodes one output tensor per scale and suppresses overlaps.
//
// Arguments:
//   - outputs: The engine outputs, in scale order.
//
// Returns:
//   - At most NMS.Limit detections.
//   - A wrapped common.ErrShapeMismatch when the outputs do not fit the grids.
func (d *Detector) PostProcess(outputs []tensor.Tensor) ([]common.Detection, error) {
	candidates, err := d.decoder.DecodeTensor(outputs...)
	if err != nil {
		d.logger.Debug("dropping model output", zap.Error(err))
		return nil, err
	}
	return postprocess.Suppress(candidates, d.decoder.Labels(), &d.options.NMS), nil
}
