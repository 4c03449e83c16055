package images

// ScreenTransform maps boxes from square model-input pixels onto a screen on
// which that square is centred and scaled to fit the shorter side.
type ScreenTransform struct {
	Scale  float32
	ShiftX float32
	ShiftY float32
}

// NewScreenTransform computes the transform for a screen of the given size
// and a square model input of inputSize pixels.
//
// Arguments:
//   - screenWidth: The screen width in pixels.
//   - screenHeight: The screen height in pixels.
//   - inputSize: The side of the square model input in pixels.
//
// Returns:
//   - ScreenTransform: Identity when inputSize is not positive.
//
// @example
// t := NewScreenTransform(1080, 1920, 416)
// // t.Scale == 1080/416, t.ShiftX == 0, t.ShiftY == (1920-1080)/2
func NewScreenTransform(screenWidth, screenHeight, inputSize int) ScreenTransform {
	if inputSize <= 0 {
		return ScreenTransform{Scale: 1}
	}

	var t ScreenTransform
	smallest := screenHeight
	if screenWidth < screenHeight {
		smallest = screenWidth
		t.ShiftY = float32(screenHeight-smallest) / 2
	} else {
		t.ShiftX = float32(screenWidth-smallest) / 2
	}
	t.Scale = float32(smallest) / float32(inputSize)
	return t
}

// Apply maps b into screen space.
func (t ScreenTransform) Apply(b Box) Box {
	return Box{
		X:      b.X*t.Scale + t.ShiftX,
		Y:      b.Y*t.Scale + t.ShiftY,
		Width:  b.Width * t.Scale,
		Height: b.Height * t.Scale,
	}
}
