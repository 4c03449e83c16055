// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-arlocalize/images"

// Candidate is a decoded box before suppression.
type Candidate struct {
	// The box in the decoder's coordinate convention.
	Box images.Box
	// Per-class probabilities, already scaled by objectness. Indexed like the label table.
	Probabilities []float32
}

// Best returns the most probable class of the candidate and its probability.
func (c Candidate) Best() (int, float32) {
	return ArgMax(c.Probabilities)
}
