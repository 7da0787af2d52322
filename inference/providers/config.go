// Package providers - ONNX Runtime session configuration.
package providers

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-detect/models/model"
)

// OutputSpec names one output of the network and the shape its buffer is allocated with.
type OutputSpec struct {
	Name  string  `json:"name"  yaml:"name"`
	Shape []int64 `json:"shape" yaml:"shape"`
}

// Config configures a Session.
type Config struct {
	// Backend specifies the execution provider.
	Backend Backend `json:"backend" yaml:"backend"`
	// ModelPath specifies the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides the location of the onnxruntime shared library.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// InputName is the image input of the network.
	InputName string `json:"input_name" yaml:"input_name"`
	// InputSize is the resized network input (width, height).
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// ImInfoInput is the name of the im_info input of region-proposal networks, if any.
	ImInfoInput string `json:"im_info_input" yaml:"im_info_input"`
	// ImInfoScale is the scale passed in the im_info input.
	ImInfoScale float32 `json:"im_info_scale" yaml:"im_info_scale"`
	// Outputs are the network outputs to read.
	Outputs []OutputSpec `json:"outputs" yaml:"outputs"`

	// Scale multiplies every pixel value after mean subtraction.
	Scale float32 `json:"scale" yaml:"scale"`
	// Mean is subtracted from every channel.
	Mean [3]float32 `json:"mean" yaml:"mean"`
	// SwapRB feeds RGB instead of BGR.
	SwapRB bool `json:"swap_rb" yaml:"swap_rb"`

	// LastLayerType is the symbolic type of the final layer, e.g. "DetectionOutput".
	LastLayerType string `json:"last_layer_type" yaml:"last_layer_type"`
	// Format pins the output format when the layer type is not meaningful for ONNX graphs.
	Format model.Format `json:"format" yaml:"format"`

	// IntraOpThreads parallelizes execution within graph nodes. Zero uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelizes execution across graph nodes. Zero uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`

	CUDA     CUDAOptions     `json:"cuda"     yaml:"cuda"`
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	CoreML   CoreMLOptions   `json:"coreml"   yaml:"coreml"`
}

// DefaultConfig returns a CPU configuration for a 300x300 single-shot detector with a
// [1, 1, 100, 7] detection output.
//
// Returns:
//   - Config: The configuration; ModelPath still needs to be set.
func DefaultConfig() Config {
	return Config{
		Backend:     CPUBackend,
		InputName:   "image",
		InputSize:   image.Point{X: 300, Y: 300},
		ImInfoScale: 1.6,
		Outputs: []OutputSpec{
			{Name: "detection_out", Shape: []int64{1, 1, 100, 7}},
		},
		Scale:         1.0 / 127.5,
		Mean:          [3]float32{127.5, 127.5, 127.5},
		SwapRB:        true,
		LastLayerType: model.LayerTypeDetectionOutput,
	}
}

// Metadata describes the output layer of the configured network.
func (c Config) Metadata() model.Metadata {
	return model.Metadata{
		HasImInfo:     c.ImInfoInput != "",
		LastLayerType: c.LastLayerType,
		Format:        c.Format,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model_path is required")
	}
	if c.InputName == "" {
		return fmt.Errorf("input_name is required")
	}
	if c.InputSize.X <= 0 || c.InputSize.Y <= 0 {
		return fmt.Errorf("input_size must be positive, got %v", c.InputSize)
	}
	if len(c.Outputs) == 0 {
		return fmt.Errorf("at least one output is required")
	}
	for _, o := range c.Outputs {
		if o.Name == "" {
			return fmt.Errorf("output name is required")
		}
		if len(o.Shape) == 0 {
			return fmt.Errorf("output %s: shape is required", o.Name)
		}
		for _, d := range o.Shape {
			if d <= 0 {
				return fmt.Errorf("output %s: dimensions must be positive, got %v", o.Name, o.Shape)
			}
		}
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	return nil
}
