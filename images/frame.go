package images

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Layout is the memory order of a rank-4 float tensor with batch size 1.
type Layout int

const (
	// ChannelsLast is [1, height, width, channels] (NHWC).
	ChannelsLast Layout = iota
	// ChannelsFirst is [1, channels, height, width] (NCHW).
	ChannelsFirst
)

// String returns the conventional short name of the layout.
func (l Layout) String() string {
	switch l {
	case ChannelsLast:
		return "nhwc"
	case ChannelsFirst:
		return "nchw"
	default:
		return "unknown"
	}
}

// InputOptions controls how a camera frame becomes a model input tensor.
type InputOptions struct {
	// Size is the side of the square model input in pixels.
	Size int
	// Mean is subtracted from each 8-bit channel value.
	Mean float32
	// Std divides each channel value after the mean is subtracted.
	Std float32
	// Layout is the tensor memory order.
	Layout Layout
	// Rotate90 rotates the square clockwise before it is written out, for
	// sensors that deliver frames in landscape while the UI is portrait.
	Rotate90 bool
	// BGR writes channels in blue, green, red order.
	BGR bool
}

// DefaultInputOptions returns the 416x416 NHWC options with values scaled to [0, 1].
func DefaultInputOptions() InputOptions {
	return InputOptions{
		Size:   416,
		Mean:   0,
		Std:    255,
		Layout: ChannelsLast,
	}
}

// CropSquare returns the centred square region of img whose side is the
// shorter image dimension.
func CropSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	r := image.Rect(x0, y0, x0+side, y0+side)

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// PrepareInput crops, resizes and normalizes a frame into a flat float32
// tensor of Size*Size*3 values.
//
// Arguments:
//   - img: The camera frame.
//   - opts: The tensor options.
//
// Returns:
//   - []float32: The input tensor in opts.Layout order.
//   - error: An error if the frame or options are unusable.
//
// @example
// input, err := PrepareInput(frame, DefaultInputOptions())
func PrepareInput(img image.Image, opts InputOptions) ([]float32, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	if img.Bounds().Empty() {
		return nil, errors.New("image is empty")
	}
	if opts.Size <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", opts.Size)
	}
	if opts.Std == 0 {
		return nil, errors.New("input std must be non-zero")
	}

	size := opts.Size
	square := resize.Resize(uint(size), uint(size), CropSquare(img), resize.Bilinear)
	origin := square.Bounds().Min

	out := make([]float32, size*size*3)
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			sx, sy := x, y
			if opts.Rotate90 {
				sx, sy = y, size-1-x
			}
			r, g, b, _ := square.At(origin.X+sx, origin.Y+sy).RGBA()
			rgb := [3]float32{float32(r >> 8), float32(g >> 8), float32(b >> 8)}
			if opts.BGR {
				rgb[0], rgb[2] = rgb[2], rgb[0]
			}

			pixel := y*size + x
			for c := 0; c < 3; c++ {
				v := (rgb[c] - opts.Mean) / opts.Std
				if opts.Layout == ChannelsFirst {
					out[c*plane+pixel] = v
				} else {
					out[pixel*3+c] = v
				}
			}
		}
	}
	return out, nil
}
