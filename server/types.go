package server

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// TensorPayload is a raw output tensor in row-major order.
type TensorPayload struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Dense converts the payload into a dense tensor.
func (p TensorPayload) Dense() (*tensor.Dense, error) {
	if len(p.Shape) == 0 {
		return nil, fmt.Errorf("tensor shape is required")
	}
	size := 1
	for _, d := range p.Shape {
		if d <= 0 {
			return nil, fmt.Errorf("tensor dimensions must be positive, got %v", p.Shape)
		}
		size *= d
	}
	if size != len(p.Data) {
		return nil, fmt.Errorf("tensor shape %v needs %d values, got %d", p.Shape, size, len(p.Data))
	}
	data := make([]float32, len(p.Data))
	copy(data, p.Data)
	return tensor.New(tensor.WithShape(p.Shape...), tensor.WithBacking(data)), nil
}

// DecodeRequest carries the raw outputs of one forward pass run elsewhere.
type DecodeRequest struct {
	Outputs  []TensorPayload `json:"outputs"  binding:"required"`
	Metadata model.Metadata  `json:"metadata"`
	Frame    images.Frame    `json:"frame"`
}

// DetectRequest carries one encoded image, optionally as a data URL.
type DetectRequest struct {
	Image string `json:"image" binding:"required"`
}

// Detection is one detection in a response.
type Detection struct {
	Box        images.Box `json:"box"`
	Confidence float32    `json:"confidence"`
	ClassID    int        `json:"class_id"`
	Label      string     `json:"label,omitempty"`
}

// Response is the body of every successful decode or detect call.
type Response struct {
	RequestID  string            `json:"request_id"`
	Frame      images.Frame      `json:"frame"`
	Detections []Detection       `json:"detections"`
	Summary    detectors.Summary `json:"summary"`
}

// NewResponse builds the answer for one decoded frame.
//
// Returns:
//   - Response: The answer.
//   - error: A models.ClassIndexError when the label table does not cover a detection.
func NewResponse(requestID string, frame images.Frame, results postprocess.Results, labels models.Labels) (Response, error) {
	detections, err := NewDetections(results, labels)
	if err != nil {
		return Response{}, err
	}
	return Response{
		RequestID:  requestID,
		Frame:      frame,
		Detections: detections,
		Summary:    detectors.Summarize(results),
	}, nil
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
}

// NewDetections converts results and attaches their labels. An empty table leaves every
// label off; a table that does not cover a class is an error.
func NewDetections(results postprocess.Results, labels models.Labels) ([]Detection, error) {
	out := make([]Detection, 0, len(results))
	for _, r := range results {
		d := Detection{Box: r.Box, Confidence: r.Score, ClassID: r.Class}
		if len(labels) > 0 {
			name, err := labels.Name(r.Class)
			if err != nil {
				return nil, err
			}
			d.Label = name
		}
		out = append(out, d)
	}
	return out, nil
}
