// Package providers - Inference sessions.
package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

var environment sync.Mutex

// initEnvironment loads the native runtime once per process.
func initEnvironment(libPath string) error {
	environment.Lock()
	defer environment.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

// Session runs a detection network through onnxruntime with preallocated tensors.
type Session struct {
	mu      sync.Mutex
	config  Config
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	imInfo  *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

var _ inference.Engine = (*Session)(nil)

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required to prepare ONNX Runtime internals.
//  3. Tensor allocation: Prepares fixed-shape buffers for input/output data.
//  4. Session options: Threading, optimization level and the execution provider.
//  5. Session creation: Loads the model and binds the buffers.
//
// Arguments:
//   - config: The session configuration.
//
// Returns:
//   - *Session: The session; Close releases its native resources.
//   - error: An error if the session creation fails.
func NewSession(config Config) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}

	libPath, err := GetSharedLibPath(config.LibraryPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, errors.Wrap(err, "error initializing ORT environment")
	}

	s := &Session{config: config}
	if err := s.allocate(); err != nil {
		s.destroyTensors()
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		s.destroyTensors()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := configureOptions(options, config); err != nil {
		s.destroyTensors()
		return nil, err
	}

	inputNames, inputs := s.inputs()
	outputNames := make([]string, 0, len(config.Outputs))
	outputs := make([]ort.ArbitraryTensor, 0, len(s.outputs))
	for i, o := range config.Outputs {
		outputNames = append(outputNames, o.Name)
		outputs = append(outputs, s.outputs[i])
	}

	session, err := ort.NewAdvancedSession(config.ModelPath, inputNames, outputNames, inputs, outputs, options)
	if err != nil {
		s.destroyTensors()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.session = session

	return s, nil
}

func configureOptions(options *ort.SessionOptions, config Config) error {
	if err := options.SetIntraOpNumThreads(config.IntraOpThreads); err != nil {
		return errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(config.InterOpThreads); err != nil {
		return errors.Wrap(err, "setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "setting graph optimization level")
	}
	return appendProvider(options, config)
}

func (s *Session) allocate() error {
	var err error
	size := s.config.InputSize
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size.Y), int64(size.X)))
	if err != nil {
		return errors.Wrap(err, "error creating input tensor")
	}

	if s.config.ImInfoInput != "" {
		s.imInfo, err = ort.NewTensor(ort.NewShape(1, 3), []float32{
			float32(size.Y), float32(size.X), s.config.ImInfoScale,
		})
		if err != nil {
			return errors.Wrap(err, "error creating im_info tensor")
		}
	}

	for _, o := range s.config.Outputs {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(o.Shape...))
		if err != nil {
			return errors.Wrapf(err, "error creating output tensor %s", o.Name)
		}
		s.outputs = append(s.outputs, t)
	}
	return nil
}

func (s *Session) inputs() ([]string, []ort.ArbitraryTensor) {
	names := []string{s.config.InputName}
	tensors := []ort.ArbitraryTensor{s.input}
	if s.imInfo != nil {
		names = append(names, s.config.ImInfoInput)
		tensors = append(tensors, s.imInfo)
	}
	return names, tensors
}

// Infer converts img, runs the network and copies every output into a dense tensor.
//
// Boxes of region-proposal networks are relative to the resized input, so Outputs.Geometry
// is the input size for them and the captured frame size otherwise.
func (s *Session) Infer(ctx context.Context, img gocv.Mat) (*inference.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.New("empty frame")
	}
	frame, err := img.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting frame")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, errors.New("session closed")
	}

	c := s.config
	if err := PrepareInput(frame, c.InputSize, c.Mean, c.Scale, c.SwapRB, s.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}

	tensors := make([]postprocess.RawTensor, 0, len(s.outputs))
	for _, o := range s.outputs {
		tensors = append(tensors, toDense(o.GetShape(), o.GetData()))
	}

	geometry := images.Frame{Width: img.Cols(), Height: img.Rows()}
	if s.imInfo != nil {
		geometry = images.Frame{Width: c.InputSize.X, Height: c.InputSize.Y}
	}

	return &inference.Outputs{
		Tensors:  tensors,
		Metadata: c.Metadata(),
		Geometry: geometry,
	}, nil
}

// toDense copies an output buffer so it survives the next Run.
func toDense(shape ort.Shape, data []float32) *tensor.Dense {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(backing))
}

func (s *Session) destroyTensors() {
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.imInfo != nil {
		s.imInfo.Destroy()
		s.imInfo = nil
	}
	for _, o := range s.outputs {
		o.Destroy()
	}
	s.outputs = nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.destroyTensors()
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
	}
	return nil
}
