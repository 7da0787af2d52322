// Package model - Decoder contract and label family definitions.
package model

import (
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Family is the dataset a network was trained on, which fixes its label table.
type Family string

const (
	// ModelFamilyCOCO is the COCO model family (80 classes).
	ModelFamilyCOCO Family = "coco"
	// ModelFamilyVOC is the Pascal VOC model family (20 classes).
	ModelFamilyVOC Family = "voc"
)

// Decoder turns the raw output tensors of one frame into confidence-filtered candidates.
type Decoder interface {
	// Format returns the output format the decoder understands.
	Format() Format
	// Decode reads every row of every tensor and returns the candidates whose confidence
	// is strictly above threshold, with boxes expressed in frame pixels.
	Decode(outputs []postprocess.RawTensor, frame images.Frame, threshold float32) (postprocess.Results, error)
}
