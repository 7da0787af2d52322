// Package postprocess - Postprocessing utilities shared by every output decoder.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-detect/images"
)

// Result represents a single detection candidate.
//
// Results are value types: suppression drops entries from a slice but never edits them.
type Result struct {
	// The bounding box of the result in frame pixels.
	Box images.Box `json:"box"`
	// The confidence score of the result in [0, 1].
	Score float32 `json:"confidence"`
	// The predicted class index of the result, background already removed.
	Class int `json:"class_id"`
}

func (r Result) String() string {
	return fmt.Sprintf("class %d (confidence %f): (%d, %d) %dx%d",
		r.Class, r.Score, r.Box.Left, r.Box.Top, r.Box.Width, r.Box.Height)
}

// Results is an ordered detection list. After suppression the order is the order in
// which boxes were kept, i.e. descending confidence.
type Results []Result
