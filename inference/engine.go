// Package inference - Inference engine boundary and the capture-to-detections pipeline.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Outputs is what an Engine produces for one frame.
type Outputs struct {
	// Tensors are the raw output blobs of the forward pass.
	Tensors []postprocess.RawTensor
	// Metadata describes the output layer of the network.
	Metadata model.Metadata
	// Geometry is the frame the output coordinates refer to. Region-proposal networks
	// report boxes against the resized network input rather than the captured frame.
	Geometry images.Frame
}

// Engine runs the forward pass of a detection network.
//
// Implementations own native resources and are not safe for concurrent use unless they
// say otherwise.
type Engine interface {
	// Infer preprocesses img, runs the network and returns its raw outputs.
	Infer(ctx context.Context, img gocv.Mat) (*Outputs, error)
	// Close releases the network.
	Close() error
}

// Detector decodes and suppresses one frame of raw outputs. *detectors.Detector
// satisfies it.
type Detector interface {
	Detect(frame detectors.Frame) (postprocess.Results, error)
}

// Pipeline glues an Engine to a Detector.
type Pipeline struct {
	engine   Engine
	detector Detector
}

// NewPipeline creates a Pipeline.
//
// Arguments:
//   - engine: The inference engine.
//   - detector: The decode-and-suppress stage.
//
// Returns:
//   - *Pipeline: The pipeline.
func NewPipeline(engine Engine, detector Detector) *Pipeline {
	return &Pipeline{engine: engine, detector: detector}
}

// Process runs inference on img and decodes the outputs.
//
// Arguments:
//   - ctx: Cancels inference.
//   - img: The captured frame.
//
// Returns:
//   - postprocess.Results: The detections.
//   - images.Frame: The frame the detections are expressed against.
//   - error: An inference error, or the rejection reported by the detector.
func (p *Pipeline) Process(ctx context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error) {
	outputs, err := p.engine.Infer(ctx, img)
	if err != nil {
		return postprocess.Results{}, images.Frame{}, errors.Wrap(err, "inference")
	}

	results, err := p.detector.Detect(detectors.Frame{
		Outputs:  outputs.Tensors,
		Metadata: outputs.Metadata,
		Geometry: outputs.Geometry,
	})
	return results, outputs.Geometry, err
}

// Close closes the engine.
func (p *Pipeline) Close() error {
	return p.engine.Close()
}
