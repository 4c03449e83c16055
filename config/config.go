// Package config - YAML configuration for the localization pipeline.
package config

import (
	"image/color"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-arlocalize/controller"
	"github.com/nvr-ai/go-arlocalize/inference"
	"github.com/nvr-ai/go-arlocalize/models"
	"github.com/nvr-ai/go-arlocalize/models/model"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
	"github.com/nvr-ai/go-arlocalize/util"
)

// Config is the root of config.yaml.
type Config struct {
	Model      ModelConfig                 `yaml:"model"`
	Inference  InferenceConfig             `yaml:"inference"`
	Decoder    DecoderConfig               `yaml:"decoder"`
	NMS        *postprocess.NMSConfig      `yaml:"nms"`
	Aggregator controller.AggregatorConfig `yaml:"aggregator"`
	Screen     ScreenConfig                `yaml:"screen"`
	Overlay    OverlayConfig               `yaml:"overlay"`
	Log        LogConfig                   `yaml:"log"`
	Profiler   ProfilerConfig              `yaml:"profiler"`
}

// ModelConfig selects the preset and the files it loads.
type ModelConfig struct {
	Name model.Name `yaml:"name"`
	Path string     `yaml:"path"`
	// LabelsFile is read when Labels is empty.
	LabelsFile string   `yaml:"labels_file"`
	Labels     []string `yaml:"labels"`
	Inputs     []string `yaml:"inputs"`
	Outputs    []string `yaml:"outputs"`
	// Rotate90 turns the network input clockwise, for sensors mounted on their
	// side. Unset keeps the preset.
	Rotate90 *bool `yaml:"rotate90"`
}

// InferenceConfig configures the ONNX Runtime session.
type InferenceConfig struct {
	LibraryPath    string            `yaml:"library_path"`
	Backend        inference.Backend `yaml:"backend"`
	IntraOpThreads int               `yaml:"intra_op_threads"`
	InterOpThreads int               `yaml:"inter_op_threads"`
}

// DecoderConfig overrides the preset's candidate filtering.
type DecoderConfig struct {
	ProbabilityThreshold float32 `yaml:"probability_threshold"`
	// EarlyReject is left to the preset when unset.
	EarlyReject *bool `yaml:"early_reject"`
}

// ScreenConfig is the display the overlay and raycasts are computed for.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// OverlayConfig is the style of in-progress detection boxes.
type OverlayConfig struct {
	// Color is a hex colour such as "#00ff00".
	Color       string  `yaml:"color"`
	Thickness   int     `yaml:"thickness"`
	FontScale   float64 `yaml:"font_scale"`
	LabelOffset int     `yaml:"label_offset"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ProfilerConfig enables periodic runtime reports.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name: model.ModelNameYOLOv3Tiny,
			Path: "yolov3-tiny.onnx",
		},
		Inference: InferenceConfig{
			Backend: inference.BackendCPU,
		},
		Aggregator: controller.AggregatorConfig{
			StableThreshold: controller.DefaultStableThreshold,
		},
		Screen: ScreenConfig{
			Width:  1280,
			Height: 720,
		},
		Overlay: OverlayConfig{
			Color:       "#00ff00",
			Thickness:   2,
			FontScale:   1.2,
			LabelOffset: 6,
		},
		Log: LogConfig{
			Level: "info",
		},
		Profiler: ProfilerConfig{
			ReportInterval: 10 * time.Second,
		},
	}
}

// LoadFromFile reads path over the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Keys that
// are absent keep their default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late in the pipeline.
func (c *Config) Validate() error {
	if _, err := models.Preset(c.Model.Name); err != nil {
		return errors.Wrap(err, "model.name")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Aggregator.StableThreshold < 0 {
		return errors.Errorf("aggregator.stable_threshold must not be negative, got %d", c.Aggregator.StableThreshold)
	}
	if c.Decoder.ProbabilityThreshold < 0 || c.Decoder.ProbabilityThreshold >= 1 {
		return errors.Errorf("decoder.probability_threshold must be in [0, 1), got %g", c.Decoder.ProbabilityThreshold)
	}
	if c.NMS != nil {
		switch c.NMS.Strategy {
		case postprocess.StrategyPerClass, postprocess.StrategyPerBox:
		default:
			return errors.Errorf("nms.strategy must be %q or %q, got %q",
				postprocess.StrategyPerClass, postprocess.StrategyPerBox, c.NMS.Strategy)
		}
		if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
			return errors.Errorf("nms.iou_threshold must be in [0, 1], got %g", c.NMS.IoUThreshold)
		}
		if c.NMS.Limit <= 0 {
			return errors.Errorf("nms.limit must be positive, got %d", c.NMS.Limit)
		}
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return errors.Errorf("screen must have a positive size, got %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if _, err := c.Overlay.RGBA(); err != nil {
		return err
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// RGBA parses the overlay colour.
func (o OverlayConfig) RGBA() (color.RGBA, error) {
	c, err := colorful.Hex(o.Color)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "overlay.color %q", o.Color)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// ModelArgs builds the arguments for models.NewModel, reading the labels
// file when no inline labels are set.
func (c *Config) ModelArgs(log *zap.Logger) (model.NewModelArgs, error) {
	labels := c.Model.Labels
	if len(labels) == 0 && c.Model.LabelsFile != "" {
		var err error
		labels, err = util.LoadLabels(c.Model.LabelsFile)
		if err != nil {
			return model.NewModelArgs{}, err
		}
	}

	return model.NewModelArgs{
		Name:                 c.Model.Name,
		Path:                 c.Model.Path,
		Labels:               labels,
		NMS:                  c.NMS,
		Inputs:               c.Model.Inputs,
		Outputs:              c.Model.Outputs,
		ProbabilityThreshold: c.Decoder.ProbabilityThreshold,
		EarlyReject:          c.Decoder.EarlyReject,
		Rotate90:             c.Model.Rotate90,
		Logger:               log,
	}, nil
}

// SessionConfig derives the runtime session for a built model.
func (c *Config) SessionConfig(m model.Model) (inference.SessionConfig, error) {
	sc, err := inference.SessionConfigFor(m.Options(), c.Inference.LibraryPath)
	if err != nil {
		return inference.SessionConfig{}, err
	}
	if c.Inference.Backend != "" {
		sc.Backend = c.Inference.Backend
	}
	sc.IntraOpThreads = c.Inference.IntraOpThreads
	sc.InterOpThreads = c.Inference.InterOpThreads
	return sc, nil
}
