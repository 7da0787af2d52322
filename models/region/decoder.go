// Package region - decodes the output of grid-based single-pass detectors whose last layer
// is a darknet Region layer (YOLOv2 / tiny YOLOv3 through the OpenCV DNN module).
package region

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

const (
	// BoxColumns is the number of leading box columns: [cx, cy, w, h].
	BoxColumns = 4
	// DefaultScoreOffset is the column of the first class score.
	DefaultScoreOffset = BoxColumns
	// DarknetScoreOffset skips the objectness column emitted by darknet Region blobs.
	DarknetScoreOffset = BoxColumns + 1
)

// Options configures a Decoder.
type Options struct {
	// ScoreOffset is the column of the first class score. Zero means DefaultScoreOffset.
	ScoreOffset int `json:"score_offset" yaml:"score_offset"`
	// NumClasses, when positive, is the number of class scores every row must carry.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
}

// Decoder decodes rows of [cx, cy, w, h, score_0, ..., score_n-1].
type Decoder struct {
	offset     int
	numClasses int
}

// New creates a Decoder.
//
// Arguments:
//   - opts: The decoder options.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: An error when the score offset would overlap the box columns.
func New(opts Options) (*Decoder, error) {
	offset := opts.ScoreOffset
	if offset == 0 {
		offset = DefaultScoreOffset
	}
	if offset < BoxColumns {
		return nil, errors.Errorf("region: score offset %d overlaps the %d box columns", offset, BoxColumns)
	}
	if opts.NumClasses < 0 {
		return nil, errors.Errorf("region: negative class count %d", opts.NumClasses)
	}

	return &Decoder{offset: offset, numClasses: opts.NumClasses}, nil
}

// Format returns model.FormatRegion.
func (d *Decoder) Format() model.Format {
	return model.FormatRegion
}

// ScoreOffset returns the column of the first class score.
func (d *Decoder) ScoreOffset() int {
	return d.offset
}

// Decode picks the best class of every row and emits a candidate when its score is
// strictly above threshold.
//
// Box columns are fractions of the frame. They are scaled and truncated to whole pixels
// before the top-left corner is derived from the center, so the arithmetic matches the
// integer boxes the OpenCV samples draw. Ties between class scores resolve to the lowest
// class index.
//
// Arguments:
//   - outputs: The raw tensors of one frame; each is viewed as rows of its last axis.
//   - frame: The frame the boxes are expressed against.
//   - threshold: The confidence threshold.
//
// Returns:
//   - postprocess.Results: The candidates in emission order.
//   - error: A MalformedTensorError when rows are too narrow to carry class scores.
func (d *Decoder) Decode(
	outputs []postprocess.RawTensor,
	frame images.Frame,
	threshold float32,
) (postprocess.Results, error) {
	minWidth := d.offset + 1
	if d.numClasses > 0 {
		minWidth = d.offset + d.numClasses
	}

	results := make(postprocess.Results, 0)
	var scores []float64

	for i, output := range outputs {
		view, err := postprocess.Rows(output, minWidth)
		if err != nil {
			return nil, postprocess.AtOutput(err, i)
		}

		n := view.Width() - d.offset
		if d.numClasses > 0 {
			n = d.numClasses
		}
		if cap(scores) < n {
			scores = make([]float64, n)
		}
		scores = scores[:n]

		for r := 0; r < view.Len(); r++ {
			row := view.Row(r)
			for j := range scores {
				scores[j] = float64(row[d.offset+j])
			}

			classID := floats.MaxIdx(scores)
			confidence := row[d.offset+classID]
			if !postprocess.AboveThreshold(confidence, threshold) {
				continue
			}

			box := centerBox(row, frame)
			if box.Empty() {
				continue
			}

			results = append(results, postprocess.Result{
				Box:   box,
				Score: confidence,
				Class: classID,
			})
		}
	}

	return results, nil
}

func centerBox(row []float32, frame images.Frame) images.Box {
	cx := int(row[0] * float32(frame.Width))
	cy := int(row[1] * float32(frame.Height))
	w := int(row[2] * float32(frame.Width))
	h := int(row[3] * float32(frame.Height))

	return images.Box{
		Left:   int(float32(cx) - float32(w)/2),
		Top:    int(float32(cy) - float32(h)/2),
		Width:  w,
		Height: h,
	}
}
