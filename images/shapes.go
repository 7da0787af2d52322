// Package images - Geometry primitives shared by the decoders and the suppression engine.
package images

import "image"

// Rect is a lightweight corner-form rectangle.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Box is a detection bounding box in pixel coordinates of the output frame.
//
// A box that leaves a decoder always has a positive Width and Height.
type Box struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Right returns the exclusive right edge of the box.
func (b Box) Right() int {
	return b.Left + b.Width
}

// Bottom returns the exclusive bottom edge of the box.
func (b Box) Bottom() int {
	return b.Top + b.Height
}

// Empty reports whether the box is degenerate (non-positive width or height).
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Area returns the area of the box in pixels, or 0 for a degenerate box. It is a float64
// so boxes with very large sides do not overflow.
func (b Box) Area() float64 {
	if b.Empty() {
		return 0
	}
	return float64(b.Width) * float64(b.Height)
}

// Rect converts the box into corner form.
func (b Box) Rect() Rect {
	return Rect{X1: b.Left, Y1: b.Top, X2: b.Right(), Y2: b.Bottom()}
}

// Rectangle converts the box into an image.Rectangle for drawing.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right(), b.Bottom())
}

// BoxFromCorners builds a box from inclusive corner coordinates, where a box spanning
// a single pixel has left == right.
func BoxFromCorners(left, top, right, bottom int) Box {
	return Box{
		Left:   left,
		Top:    top,
		Width:  right - left + 1,
		Height: bottom - top + 1,
	}
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(o Box) float32 {
	return CalculateIoU(b.Rect(), o.Rect())
}

// CalculateIoU measures the overlap of two rectangles as
//
//	IoU = Area of Intersection / Area of Union
//
// 1.0 means the rectangles are identical, 0.0 means they do not overlap at all.
// Rectangles with zero or negative area never overlap anything, so the result is 0
// and no division by zero can occur.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	// Areas are float64: int products overflow for very large proposal boxes.
	interArea := float64(interW) * float64(interH)

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	areaR := float64(r.X2-r.X1) * float64(r.Y2-r.Y1)
	areaO := float64(o.X2-o.X1) * float64(o.Y2-o.Y1)
	unionArea := areaR + areaO - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea / unionArea)
}
