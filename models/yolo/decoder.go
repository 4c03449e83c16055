package yolo

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
	"github.com/nvr-ai/go-arlocalize/models/postprocess"
)

// Decoder turns raw grid output into candidates. It holds no per-frame state
// and is safe for concurrent use.
type Decoder struct {
	scales  []Scale
	anchors []Anchor
	labels  []string
	config  Config
}

// NewDecoder creates a single-scale decoder.
//
// Arguments:
//   - grid: The output geometry.
//   - anchors: The anchor table; slot b uses anchors[b].
//   - labels: The label table; its length must equal grid.ClassCount.
//   - config: How raw values are interpreted.
//
// Returns:
//   - The decoder.
//   - common.ErrClassCountMismatch or a wrapped common.ErrShapeMismatch.
func NewDecoder(grid Grid, anchors []Anchor, labels []string, config Config) (*Decoder, error) {
	return NewMultiScaleDecoder([]Scale{{Grid: grid}}, anchors, labels, config)
}

// NewMultiScaleDecoder creates a decoder for models with several output
// grids sharing one anchor table and label table.
//
// Arguments:
//   - scales: The output grids in the order their buffers are passed to DecodeScales.
//   - anchors: The shared anchor table.
//   - labels: The label table; its length must equal every grid's ClassCount.
//   - config: How raw values are interpreted.
//
// Returns:
//   - The decoder.
//   - common.ErrClassCountMismatch or a wrapped common.ErrShapeMismatch.
func NewMultiScaleDecoder(scales []Scale, anchors []Anchor, labels []string, config Config) (*Decoder, error) {
	if len(scales) == 0 {
		return nil, errors.Wrap(common.ErrShapeMismatch, "at least one scale is required")
	}

	for i, s := range scales {
		g := s.Grid
		if g.ClassCount != len(labels) {
			return nil, errors.Wrapf(common.ErrClassCountMismatch,
				"scale %d: class count %d, %d labels", i, g.ClassCount, len(labels))
		}
		if g.Rows <= 0 || g.Cols <= 0 || g.BoxesPerCell <= 0 {
			return nil, errors.Wrapf(common.ErrShapeMismatch,
				"scale %d: invalid grid %dx%dx%d", i, g.Rows, g.Cols, g.BoxesPerCell)
		}
		if config.Convention == PixelSpace || config.AnchorUnit == Pixels {
			if g.CellWidth <= 0 || g.CellHeight <= 0 {
				return nil, errors.Wrapf(common.ErrShapeMismatch,
					"scale %d: invalid cell size %gx%g", i, g.CellWidth, g.CellHeight)
			}
		}
		if s.AnchorOffset < 0 || s.AnchorOffset+g.BoxesPerCell > len(anchors) {
			return nil, errors.Wrapf(common.ErrShapeMismatch,
				"scale %d: needs anchors [%d, %d), table has %d",
				i, s.AnchorOffset, s.AnchorOffset+g.BoxesPerCell, len(anchors))
		}
	}

	return &Decoder{
		scales:  append([]Scale(nil), scales...),
		anchors: append([]Anchor(nil), anchors...),
		labels:  append([]string(nil), labels...),
		config:  config,
	}, nil
}

// Labels returns the label table, indexed like candidate probabilities.
func (d *Decoder) Labels() []string {
	return d.labels
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config {
	return d.config
}

// Decode decodes the buffer of a single-scale model.
//
// Arguments:
//   - buf: The raw output, laid out as configured.
//
// Returns:
//   - Candidates in row, column, slot order.
//   - A wrapped common.ErrShapeMismatch when len(buf) does not match the grid.
func (d *Decoder) Decode(buf []float32) ([]postprocess.Candidate, error) {
	return d.DecodeScales(buf)
}

// DecodeScales decodes one buffer per configured scale and concatenates the
// candidates in scale order.
//
// Arguments:
//   - bufs: One raw output per scale.
//
// Returns:
//   - Candidates in scale, row, column, slot order.
//   - A wrapped common.ErrShapeMismatch when the number or length of the buffers is wrong.
func (d *Decoder) DecodeScales(bufs ...[]float32) ([]postprocess.Candidate, error) {
	if len(bufs) != len(d.scales) {
		return nil, errors.Wrapf(common.ErrShapeMismatch,
			"expected %d output buffers, got %d", len(d.scales), len(bufs))
	}
	for i, s := range d.scales {
		if want := s.Grid.BufferLen(); len(bufs[i]) != want {
			return nil, errors.Wrapf(common.ErrShapeMismatch,
				"scale %d: expected %d values, got %d", i, want, len(bufs[i]))
		}
	}

	var candidates []postprocess.Candidate
	for i, s := range d.scales {
		candidates = d.decodeScale(candidates, s, bufs[i])
	}
	return candidates, nil
}

func (d *Decoder) decodeScale(dst []postprocess.Candidate, s Scale, buf []float32) []postprocess.Candidate {
	g := s.Grid
	channels := g.Channels()
	plane := g.Rows * g.Cols
	threshold := d.config.ProbabilityThreshold
	logits := make([]float32, g.ClassCount)

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			cell := row*g.Cols + col

			at := func(ch int) float32 {
				if d.config.Layout == images.ChannelsFirst {
					return buf[ch*plane+cell]
				}
				return buf[cell*channels+ch]
			}

			for b := 0; b < g.BoxesPerCell; b++ {
				base := b * (g.ClassCount + 5)

				objectness := postprocess.Logistic(at(base + 4))
				if d.config.EarlyReject && objectness < threshold {
					continue
				}

				for c := range logits {
					logits[c] = at(base + 5 + c)
				}
				probs, err := postprocess.Softmax(logits)
				if err != nil {
					// No classes, nothing to rank.
					continue
				}

				var best float32
				for c := range probs {
					probs[c] *= objectness
					if probs[c] > best {
						best = probs[c]
					}
				}
				if best <= threshold {
					continue
				}

				anchor := d.anchorSize(g, d.anchors[s.AnchorOffset+b])
				box := d.box(g, row, col, at(base), at(base+1), at(base+2), at(base+3), anchor)
				dst = append(dst, postprocess.Candidate{Box: box, Probabilities: probs})
			}
		}
	}
	return dst
}

// anchorSize converts an anchor into the decoder's coordinate convention.
func (d *Decoder) anchorSize(g Grid, a Anchor) Anchor {
	switch {
	case d.config.AnchorUnit == Cells && d.config.Convention == PixelSpace:
		return Anchor{Width: a.Width * g.CellWidth, Height: a.Height * g.CellHeight}
	case d.config.AnchorUnit == Cells && d.config.Convention == Normalized:
		return Anchor{Width: a.Width / float32(g.Cols), Height: a.Height / float32(g.Rows)}
	case d.config.AnchorUnit == Pixels && d.config.Convention == Normalized:
		return Anchor{
			Width:  a.Width / (float32(g.Cols) * g.CellWidth),
			Height: a.Height / (float32(g.Rows) * g.CellHeight),
		}
	default:
		return a
	}
}

func (d *Decoder) box(g Grid, row, col int, tx, ty, tw, th float32, anchor Anchor) images.Box {
	cx := float32(col) + postprocess.Logistic(tx)
	cy := float32(row) + postprocess.Logistic(ty)
	if d.config.Convention == PixelSpace {
		cx *= g.CellWidth
		cy *= g.CellHeight
	} else {
		cx /= float32(g.Cols)
		cy /= float32(g.Rows)
	}

	w := math32.Exp(tw) * anchor.Width
	h := math32.Exp(th) * anchor.Height

	return images.Box{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}
