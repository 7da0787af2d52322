// Package providers - ONNX Runtime execution providers.
package providers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// CPUBackend runs on the default CPU execution provider.
	CPUBackend Backend = "cpu"
	// CUDABackend uses NVIDIA CUDA for inference optimization.
	CUDABackend Backend = "cuda"
	// OpenVINOBackend uses Intel OpenVINO for inference optimization.
	OpenVINOBackend Backend = "openvino"
	// CoreMLBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLBackend Backend = "coreml"
)

// Backends is a list of all supported backends.
var Backends = []Backend{CPUBackend, CUDABackend, OpenVINOBackend, CoreMLBackend}

// ParseBackend parses a backend name. The empty string selects the CPU.
func ParseBackend(s string) (Backend, error) {
	if s == "" {
		return CPUBackend, nil
	}
	for _, b := range Backends {
		if strings.EqualFold(string(b), s) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown execution provider %q, expected one of %v", s, Backends)
}

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// The size limit of the device memory arena in bytes. Zero leaves the provider default.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// The strategy for extending the device memory arena: kNextPowerOfTwo or kSameAsRequested.
	ArenaExtendStrategy string `json:"arena_extend_strategy" yaml:"arena_extend_strategy"`
	// The type of search done for cuDNN convolution algorithms: EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `json:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search"`
	// Whether to do copies in the default stream or use separate streams.
	DoCopyInDefaultStream bool `json:"do_copy_in_default_stream" yaml:"do_copy_in_default_stream"`
	// TF32 lets float32 convolutions run on tensor cores with reduced precision.
	UseTF32 bool `json:"use_tf32" yaml:"use_tf32"`
}

// providerOptions converts the options into the key/value form the CUDA provider accepts.
func (o CUDAOptions) providerOptions() map[string]string {
	opts := map[string]string{
		"device_id":                 strconv.Itoa(o.DeviceID),
		"do_copy_in_default_stream": boolFlag(o.DoCopyInDefaultStream),
		"use_tf32":                  boolFlag(o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		opts["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		opts["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		opts["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return opts
}

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type, e.g. CPU, GPU or NPU.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// FP32, FP16 or ACCURACY.
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the accelerator default number of threads.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
	// Overrides the accelerator default streams.
	NumStreams int `json:"num_streams" yaml:"num_streams"`
	// Rewrites dynamic shaped models to static shape at runtime.
	DisableDynamicShapes bool `json:"disable_dynamic_shapes" yaml:"disable_dynamic_shapes"`
}

func (o OpenVINOOptions) providerOptions() map[string]string {
	opts := map[string]string{}
	if o.DeviceType != "" {
		opts["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		opts["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		opts["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		opts["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.DisableDynamicShapes {
		opts["disable_dynamic_shapes"] = "true"
	}
	return opts
}

// CoreML provider flags.
const (
	coreMLFlagUseCPUOnly          uint32 = 0x001
	coreMLFlagEnableOnSubgraph    uint32 = 0x002
	coreMLFlagOnlyEnableDeviceANE uint32 = 0x004
)

// CoreMLOptions contains arguments for the CoreML provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Limit CoreML to running on CPU only.
	CPUOnly bool `json:"cpu_only" yaml:"cpu_only"`
	// Enable CoreML on the body of control flow operators.
	EnableOnSubgraph bool `json:"enable_on_subgraph" yaml:"enable_on_subgraph"`
	// Only use CoreML on devices with an Apple Neural Engine.
	OnlyANE bool `json:"only_ane" yaml:"only_ane"`
}

func (o CoreMLOptions) flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraph {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.OnlyANE {
		flags |= coreMLFlagOnlyEnableDeviceANE
	}
	return flags
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// appendProvider enables the configured execution provider on the session options.
//
// Arguments:
//   - options: The session options to update.
//   - config: The session configuration naming the backend and its options.
//
// Returns:
//   - error: An error if the provider is unknown or the runtime rejects it.
func appendProvider(options *ort.SessionOptions, config Config) error {
	switch config.Backend {
	case CPUBackend, "":
		return nil
	case CoreMLBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(config.CoreML.flags()), "enabling CoreML")
	case OpenVINOBackend:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(config.OpenVINO.providerOptions()), "enabling OpenVINO")
	case CUDABackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(config.CUDA.providerOptions()); err != nil {
			return errors.Wrap(err, "updating CUDA options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enabling CUDA")
	default:
		return fmt.Errorf("no matching execution provider registered: %s", config.Backend)
	}
}
