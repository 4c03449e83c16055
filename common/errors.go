package common

import "github.com/pkg/errors"

var (
	// ErrShapeMismatch is returned when a tensor buffer does not match the
	// configured grid. The frame is dropped; aggregated state is untouched.
	ErrShapeMismatch = errors.New("buffer shape does not match grid")
	// ErrClassCountMismatch is returned at construction when the label table
	// length differs from the configured class count.
	ErrClassCountMismatch = errors.New("class count does not match label table")
	// ErrEmptyInput is returned by primitives that need at least one value.
	ErrEmptyInput = errors.New("empty input")
)
