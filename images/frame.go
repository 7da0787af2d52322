package images

import (
	"fmt"
	"image"
)

// Frame is the geometry of the frame that decoded boxes are expressed against.
type Frame struct {
	// The width of the frame in pixels.
	Width int `json:"width" yaml:"width"`
	// The height of the frame in pixels.
	Height int `json:"height" yaml:"height"`
}

// FrameOf returns the geometry of an image bounds rectangle.
func FrameOf(bounds image.Rectangle) Frame {
	return Frame{Width: bounds.Dx(), Height: bounds.Dy()}
}

// Valid reports whether both dimensions are positive.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0
}

// Bounds returns the frame as an image rectangle anchored at the origin.
func (f Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f Frame) String() string {
	return fmt.Sprintf("%dx%d", f.Width, f.Height)
}
