// Package ssd - decodes 7-element detection rows emitted by region-proposal networks
// (Faster-RCNN, R-FCN) and single-shot detectors (DetectionOutput layer).
//
// Both families emit rows of
//
//	[batchId, classId, confidence, left, top, right, bottom]
//
// and only differ in how the corner coordinates map onto frame pixels, so a single
// Decoder handles both with a pluggable CoordinateScale.
package ssd

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// RowSize is the number of elements in a detection row.
const RowSize = 7

// Column offsets inside a detection row.
const (
	colBatch = iota
	colClass
	colConfidence
	colLeft
	colTop
	colRight
	colBottom
)

// backgroundLabel is the raw class id reserved for background by both families.
const backgroundLabel = 0

// CoordinateScale maps a raw corner coordinate onto a pixel position along an axis of
// the given extent.
type CoordinateScale func(v float32, extent int) int

// AbsoluteScale treats coordinates as pixels already and truncates them toward zero.
func AbsoluteScale(v float32, _ int) int {
	return int(v)
}

// NormalizedScale treats coordinates as fractions of the frame and rounds to the nearest
// pixel.
func NormalizedScale(v float32, extent int) int {
	return int(math32.Round(v * float32(extent)))
}

// Decoder decodes 7-element detection rows.
type Decoder struct {
	format model.Format
	scale  CoordinateScale
}

// NewRegionProposal returns the decoder for Faster-RCNN / R-FCN outputs, whose corner
// coordinates are absolute pixels.
func NewRegionProposal() *Decoder {
	return &Decoder{format: model.FormatRegionProposal, scale: AbsoluteScale}
}

// NewSingleShot returns the decoder for DetectionOutput layers, whose corner
// coordinates are normalized to [0, 1].
func NewSingleShot() *Decoder {
	return &Decoder{format: model.FormatDetectionOutput, scale: NormalizedScale}
}

// Format returns the output format handled by the decoder.
func (d *Decoder) Format() model.Format {
	return d.format
}

// Decode converts every row of every tensor into a candidate.
//
// Rows are dropped when their confidence is not strictly above threshold, when they
// carry the background label, or when their box is degenerate. The reported class id
// is the raw class id minus one, since index 0 of the raw label space is background.
//
// Arguments:
//   - outputs: The raw tensors of one frame; each is viewed as rows of 7.
//   - frame: The frame the boxes are expressed against.
//   - threshold: The confidence threshold.
//
// Returns:
//   - postprocess.Results: The candidates in emission order.
//   - error: A MalformedTensorError when a tensor does not hold 7-element rows.
func (d *Decoder) Decode(
	outputs []postprocess.RawTensor,
	frame images.Frame,
	threshold float32,
) (postprocess.Results, error) {
	results := make(postprocess.Results, 0)

	for i, output := range outputs {
		view, err := postprocess.Rows(output, RowSize)
		if err != nil {
			return nil, postprocess.AtOutput(err, i)
		}

		for r := 0; r < view.Len(); r++ {
			result, ok := d.decodeRow(view.Row(r), frame, threshold)
			if ok {
				results = append(results, result)
			}
		}
	}

	return results, nil
}

func (d *Decoder) decodeRow(row []float32, frame images.Frame, threshold float32) (postprocess.Result, bool) {
	confidence := row[colConfidence]
	if !postprocess.AboveThreshold(confidence, threshold) {
		return postprocess.Result{}, false
	}

	rawClass := int(row[colClass])
	if rawClass <= backgroundLabel {
		return postprocess.Result{}, false
	}

	box := images.BoxFromCorners(
		d.scale(row[colLeft], frame.Width),
		d.scale(row[colTop], frame.Height),
		d.scale(row[colRight], frame.Width),
		d.scale(row[colBottom], frame.Height),
	)
	if box.Empty() {
		return postprocess.Result{}, false
	}

	return postprocess.Result{
		Box:   box,
		Score: confidence,
		Class: rawClass - 1,
	}, true
}
