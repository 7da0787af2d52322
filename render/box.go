// Package render draws detections onto captured frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

var (
	// Green is the default box color.
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// White is the default label background.
	White = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	// Black is the default label text color.
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 0}
)

// Style defines how boxes and labels are drawn.
type Style struct {
	BoxColor      color.RGBA
	LineThickness int
	Face          gocv.HersheyFont
	Scale         float64
	TextColor     color.RGBA
	TextThickness int
	LabelColor    color.RGBA
}

// DefaultStyle returns a 2px green box with black text on a white label.
func DefaultStyle() Style {
	return Style{
		BoxColor:      Green,
		LineThickness: 2,
		Face:          gocv.FontHersheySimplex,
		Scale:         0.4,
		TextColor:     Black,
		TextThickness: 1,
		LabelColor:    White,
	}
}

// LabelText formats the confidence as a percentage, prefixed with the class name when
// labels are configured.
//
// Arguments:
//   - r: The detection.
//   - labels: The label table, possibly empty.
//
// Returns:
//   - string: The label text, e.g. "person: 87.50".
//   - error: A *models.ClassIndexError if the class has no label.
func LabelText(r postprocess.Result, labels models.Labels) (string, error) {
	text := fmt.Sprintf("%.2f", r.Score*100)
	if len(labels) == 0 {
		return text, nil
	}
	name, err := labels.Name(r.Class)
	if err != nil {
		return "", err
	}
	return name + ": " + text, nil
}

// LabelPlacement returns the text origin and the filled background of a label drawn on
// top of a box. The label is pushed down when the box touches the top of the frame.
//
// Arguments:
//   - left: The left edge of the box.
//   - top: The top edge of the box.
//   - textSize: The size of the rendered text.
//   - baseline: The baseline offset of the rendered text.
//
// Returns:
//   - image.Point: The bottom-left origin of the text.
//   - image.Rectangle: The label background.
func LabelPlacement(left, top int, textSize image.Point, baseline int) (image.Point, image.Rectangle) {
	if top < textSize.Y {
		top = textSize.Y
	}
	origin := image.Pt(left, top)
	background := image.Rect(left, top-textSize.Y-2, left+textSize.X, top+baseline)
	return origin, background
}

// Detections renders a box and a confidence label for every detection.
//
// Arguments:
//   - img: The frame the detections were decoded against.
//   - results: The detections.
//   - labels: The label table, possibly empty.
//   - style: The drawing style.
//
// Returns:
//   - error: A *models.ClassIndexError if a detection has no label; boxes drawn before it
//     are kept.
func Detections(img *gocv.Mat, results postprocess.Results, labels models.Labels, style Style) error {
	for _, r := range results {
		gocv.Rectangle(img, r.Box.Rectangle(), style.BoxColor, style.LineThickness)

		text, err := LabelText(r, labels)
		if err != nil {
			return err
		}
		textSize, baseline := gocv.GetTextSizeWithBaseline(text, style.Face, style.Scale, style.TextThickness)
		origin, background := LabelPlacement(r.Box.Left, r.Box.Top, textSize, baseline)

		gocv.Rectangle(img, background, style.LabelColor, -1)
		gocv.PutText(img, text, origin, style.Face, style.Scale, style.TextColor, style.TextThickness)
	}
	return nil
}

// Status writes a line of text in the top-left corner, one line per row index.
func Status(img *gocv.Mat, row int, text string, c color.RGBA) {
	gocv.PutText(img, text, image.Pt(10, 30*(row+1)), gocv.FontHersheyPlain, 1.2, c, 2)
}
