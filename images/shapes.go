// Package images - Box geometry and frame preparation utilities.
package images

import "image"

// Point is a 2D coordinate in the same space as the boxes it is compared with.
type Point struct {
	X, Y float32
}

// Box is an axis-aligned box anchored at its top-left corner.
//
// The coordinate space depends on the decoder convention that produced it:
// either normalized to [0, 1] of the model input, or model-input pixels.
// Width and Height are never negative.
type Box struct {
	X, Y          float32
	Width, Height float32
}

// Area returns Width*Height, or 0 for a degenerate box.
func (b Box) Area() float32 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Max returns the bottom-right corner.
func (b Box) Max() Point {
	return Point{X: b.X + b.Width, Y: b.Y + b.Height}
}

// Contains reports whether p lies strictly inside the box. Points on an edge
// are outside.
func (b Box) Contains(p Point) bool {
	return b.X < p.X && p.X < b.X+b.Width &&
		b.Y < p.Y && p.Y < b.Y+b.Height
}

// Rect converts the box to an image.Rectangle, truncating fractional pixels.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height)).Canon()
}

// CalculateIoU (Intersection over Union) measures the overlap between two
// boxes as a value between 0.0 and 1.0.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the boxes are identical.
//	- A value of 0.0 means the boxes don't overlap at all, or one of them has no area.
//
// **1. Calculate the Intersection Area**
//
//	The top-left corner of the intersection is the *maximum* of the two top-left
//	corners; the bottom-right corner is the *minimum* of the two bottom-right
//	corners. If the resulting width or height is zero or negative, the boxes do
//	not overlap and 0.0 is returned immediately.
//
// **2. Calculate the Union Area**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// **3. Divide and Return**
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Box{X: 0, Y: 0, Width: 10, Height: 10}
//	b := Box{X: 5, Y: 5, Width: 10, Height: 10}
//
//	fmt.Printf("The IoU is: %f\n", CalculateIoU(a, b)) // 25 / (100 + 100 - 25). Output: The IoU is: 0.142857
//
// ```
func CalculateIoU(r, o Box) float32 {
	areaR := r.Area()
	areaO := o.Area()
	if areaR == 0 || areaO == 0 {
		return 0.0
	}

	rMax, oMax := r.Max(), o.Max()
	ix1 := max(r.X, o.X)
	iy1 := max(r.Y, o.Y)
	ix2 := min(rMax.X, oMax.X)
	iy2 := min(rMax.Y, oMax.Y)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	return interArea / (areaR + areaO - interArea)
}

// IsSameObject reports whether two boxes describe the same physical object:
// the centre of either box lies strictly inside the other. The predicate is
// symmetric.
func IsSameObject(a, b Box) bool {
	return b.Contains(a.Center()) || a.Contains(b.Center())
}
