// Package yolo - decodes grid/anchor detector output into candidate boxes.
package yolo

import (
	"fmt"

	"github.com/nvr-ai/go-arlocalize/images"
)

// Convention is the coordinate space decoded boxes are expressed in.
type Convention int

const (
	// Normalized expresses boxes as fractions of the model input, in [0, 1].
	Normalized Convention = iota
	// PixelSpace expresses boxes in model input pixels using the grid cell size.
	PixelSpace
)

// String returns the configuration name of the convention.
func (c Convention) String() string {
	switch c {
	case Normalized:
		return "normalized"
	case PixelSpace:
		return "pixel"
	default:
		return fmt.Sprintf("Convention(%d)", int(c))
	}
}

// AnchorUnit is the unit the anchor table is written in.
type AnchorUnit int

const (
	// Cells means anchor sizes are multiples of one grid cell.
	Cells AnchorUnit = iota
	// Pixels means anchor sizes are model input pixels.
	Pixels
)

// String returns the configuration name of the unit.
func (u AnchorUnit) String() string {
	switch u {
	case Cells:
		return "cells"
	case Pixels:
		return "pixels"
	default:
		return fmt.Sprintf("AnchorUnit(%d)", int(u))
	}
}

// Grid describes the geometry of one output tensor.
type Grid struct {
	Rows         int     `json:"rows" yaml:"rows"`
	Cols         int     `json:"cols" yaml:"cols"`
	CellWidth    float32 `json:"cell_width" yaml:"cell_width"`
	CellHeight   float32 `json:"cell_height" yaml:"cell_height"`
	BoxesPerCell int     `json:"boxes_per_cell" yaml:"boxes_per_cell"`
	ClassCount   int     `json:"class_count" yaml:"class_count"`
}

// Channels returns the number of values stored per cell.
func (g Grid) Channels() int {
	return g.BoxesPerCell * (g.ClassCount + 5)
}

// BufferLen returns the number of values a raw output buffer for g must hold.
func (g Grid) BufferLen() int {
	return g.Rows * g.Cols * g.Channels()
}

// Anchor is a prior box size.
type Anchor struct {
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Scale pairs a grid with the first anchor it uses. Slot b of the grid uses
// anchors[AnchorOffset+b].
type Scale struct {
	Grid         Grid `json:"grid" yaml:"grid"`
	AnchorOffset int  `json:"anchor_offset" yaml:"anchor_offset"`
}

// DefaultProbabilityThreshold is the candidate threshold used when none is configured.
const DefaultProbabilityThreshold float32 = 0.1

// Config selects how raw values are interpreted.
type Config struct {
	Convention Convention    `json:"convention" yaml:"convention"`
	Layout     images.Layout `json:"layout" yaml:"layout"`
	AnchorUnit AnchorUnit    `json:"anchor_unit" yaml:"anchor_unit"`
	// A candidate is kept only when its best class probability exceeds this value.
	ProbabilityThreshold float32 `json:"probability_threshold" yaml:"probability_threshold"`
	// EarlyReject skips a slot before the softmax when its objectness alone is
	// below ProbabilityThreshold.
	EarlyReject bool `json:"early_reject" yaml:"early_reject"`
}

// DefaultConfig returns a Config for normalized, channels-last output with
// anchors in cells.
func DefaultConfig() Config {
	return Config{
		Convention:           Normalized,
		Layout:               images.ChannelsLast,
		AnchorUnit:           Cells,
		ProbabilityThreshold: DefaultProbabilityThreshold,
	}
}
