// Package common - types shared by the decoding, aggregation and placement stages.
package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-arlocalize/images"
)

// Detection represents a labeled box with its confidence.
type Detection struct {
	// ID is assigned when the detection enters the aggregated set.
	ID uuid.UUID
	// Box is the top-left anchored box in the decoder's coordinate convention.
	Box images.Box
	// Label is the class name from the label table.
	Label string
	// Confidence is the class probability scaled by objectness, in [0, 1].
	Confidence float32
	// Used is set by the placement collaborator once an AR anchor exists for
	// this detection. Nothing in the decoding or aggregation path writes it.
	Used bool
}

// String formats the detection for display.
//
// Returns:
//   - A formatted string containing label, confidence and box dimensions.
//
// @example
// d := Detection{Label: "cake", Confidence: 0.95, Box: images.Box{X: 10, Y: 20, Width: 30, Height: 40}}
// fmt.Println(d.String()) // Output: cake:0.950000, 10.00:20.00 - 30.00:40.00
func (d Detection) String() string {
	return fmt.Sprintf("%s:%f, %.2f:%.2f - %.2f:%.2f",
		d.Label, d.Confidence, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height)
}

// Clone returns a copy of the detection set that shares no backing array with ds.
func Clone(ds []Detection) []Detection {
	if ds == nil {
		return nil
	}
	out := make([]Detection, len(ds))
	copy(out, ds)
	return out
}
