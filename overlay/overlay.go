// Package overlay - draws in-progress detections over camera frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-arlocalize/common"
	"github.com/nvr-ai/go-arlocalize/images"
)

// RenderContext holds the drawing style. The zero value draws nothing
// visible; start from DefaultRenderContext.
type RenderContext struct {
	Color       color.RGBA
	Thickness   int
	FontScale   float64
	LabelOffset int
}

// DefaultRenderContext is a 2px green outline with a label just above it.
func DefaultRenderContext() RenderContext {
	return RenderContext{
		Color:       color.RGBA{0, 255, 0, 255},
		Thickness:   2,
		FontScale:   1.2,
		LabelOffset: 6,
	}
}

// Mark is one box and its caption in screen pixels.
type Mark struct {
	Rect  image.Rectangle
	Label string
	Text  image.Point
}

// Label is the caption shown while a detection is still being localized.
func Label(d common.Detection) string {
	return fmt.Sprintf("Localizing %s: %d%%", d.Label, int(d.Confidence*100))
}

// Marks maps detections to screen rectangles and caption positions.
func Marks(rc RenderContext, t images.ScreenTransform, dets []common.Detection) []Mark {
	marks := make([]Mark, 0, len(dets))
	for _, d := range dets {
		r := t.Apply(d.Box).Rect()
		y := r.Min.Y - rc.LabelOffset
		if y < 0 {
			y = r.Min.Y + rc.LabelOffset
		}
		marks = append(marks, Mark{
			Rect:  r,
			Label: Label(d),
			Text:  image.Pt(r.Min.X, y),
		})
	}
	return marks
}

// Draw outlines each detection on mat and writes its caption.
func Draw(mat *gocv.Mat, rc RenderContext, t images.ScreenTransform, dets []common.Detection) {
	for _, m := range Marks(rc, t, dets) {
		gocv.Rectangle(mat, m.Rect, rc.Color, rc.Thickness)
		gocv.PutText(mat, m.Label, m.Text, gocv.FontHersheyPlain, rc.FontScale, rc.Color, rc.Thickness)
	}
}
