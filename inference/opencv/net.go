// Package opencv - OpenCV DNN inference engine for Caffe, TensorFlow and Darknet detection networks.
package opencv

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// notFound is returned by Layer.OutputNameToIndex for an unknown port.
const notFound = -1

// Options configures a Net.
type Options struct {
	// ModelPath is the weights file (.caffemodel, .pb, .weights).
	ModelPath string `json:"model_path" yaml:"model_path"`
	// ConfigPath is the network description (.prototxt, .pbtxt, .cfg).
	ConfigPath string `json:"config_path" yaml:"config_path"`
	// Backend is an OpenCV DNN backend name such as "default", "openvino" or "cuda".
	Backend string `json:"backend" yaml:"backend"`
	// Target is an OpenCV DNN target name such as "cpu", "fp16" or "cuda".
	Target string `json:"target" yaml:"target"`
	// InputSize is the resized network input (width, height).
	InputSize image.Point `json:"input_size" yaml:"input_size"`
	// Scale multiplies every pixel value after mean subtraction.
	Scale float64 `json:"scale" yaml:"scale"`
	// Mean is subtracted from every channel.
	Mean [3]float64 `json:"mean" yaml:"mean"`
	// SwapRB feeds RGB instead of the BGR order of captured frames.
	SwapRB bool `json:"swap_rb" yaml:"swap_rb"`
	// ImInfoScale is the scale passed in the im_info input of region-proposal networks.
	ImInfoScale float32 `json:"im_info_scale" yaml:"im_info_scale"`
}

// DefaultOptions returns the preprocessing of a MobileNet SSD on a small camera frame.
func DefaultOptions() Options {
	return Options{
		Backend:     "default",
		Target:      "cpu",
		InputSize:   image.Point{X: 160, Y: 120},
		Scale:       2.0 / 255.0,
		Mean:        [3]float64{127.5, 127.5, 127.5},
		SwapRB:      true,
		ImInfoScale: 1.6,
	}
}

// Net runs a detection network through gocv.
//
// Net serializes Infer calls; an OpenCV network keeps its inputs as state between
// SetInput and Forward.
type Net struct {
	mu          sync.Mutex
	net         gocv.Net
	opts        Options
	outputNames []string
	metadata    model.Metadata
}

var _ inference.Engine = (*Net)(nil)

// New loads a network and reads the metadata of its output layer.
//
// Arguments:
//   - opts: The model files, compute backend and preprocessing.
//
// Returns:
//   - *Net: The loaded network.
//   - error: An error if a file is missing or OpenCV cannot parse the network.
func New(opts Options) (*Net, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return nil, errors.Wrap(err, "network config file")
		}
	}
	if opts.InputSize.X <= 0 || opts.InputSize.Y <= 0 {
		return nil, errors.Errorf("invalid input size %v", opts.InputSize)
	}

	net := gocv.ReadNet(opts.ModelPath, opts.ConfigPath)
	if net.Empty() {
		return nil, errors.Errorf("opencv could not read network %s", opts.ModelPath)
	}

	net.SetPreferableBackend(gocv.ParseNetBackend(opts.Backend))
	net.SetPreferableTarget(gocv.ParseNetTarget(opts.Target))

	layerNames := net.GetLayerNames()
	if len(layerNames) == 0 {
		net.Close()
		return nil, errors.Errorf("network %s has no layers", opts.ModelPath)
	}

	return &Net{
		net:         net,
		opts:        opts,
		outputNames: OutputNames(layerNames, net.GetUnconnectedOutLayers()),
		metadata:    readMetadata(&net, len(layerNames)),
	}, nil
}

// readMetadata inspects the input layer for an im_info port and reads the type of the
// last layer. Layer 0 is the implicit input layer, so the last named layer has the id
// len(layerNames).
func readMetadata(net *gocv.Net, lastLayerID int) model.Metadata {
	first := net.GetLayer(0)
	defer first.Close()
	last := net.GetLayer(lastLayerID)
	defer last.Close()

	return Metadata(first.OutputNameToIndex(model.ImInfoPort), last.GetType())
}

// Metadata builds output metadata from the index of the im_info port on the input layer
// (-1 when absent) and the type of the last layer.
func Metadata(imInfoIndex int, lastLayerType string) model.Metadata {
	return model.Metadata{
		HasImInfo:     imInfoIndex != notFound,
		LastLayerType: lastLayerType,
	}
}

// OutputNames maps the 1-based ids of the unconnected output layers to their names.
// Ids outside the name table are skipped.
func OutputNames(layerNames []string, ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 1 || id > len(layerNames) {
			continue
		}
		names = append(names, layerNames[id-1])
	}
	return names
}

// Metadata returns the output metadata read when the network was loaded.
func (n *Net) Metadata() model.Metadata {
	return n.metadata
}

// Infer builds the input blob from img, feeds im_info when the network declares it and
// returns the blobs of every unconnected output layer.
//
// Boxes of region-proposal networks are relative to the resized input, so Outputs.Geometry
// is the input size for them and the captured frame size otherwise.
func (n *Net) Infer(ctx context.Context, img gocv.Mat) (*inference.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.New("empty frame")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	mean := gocv.NewScalar(n.opts.Mean[0], n.opts.Mean[1], n.opts.Mean[2], 0)
	blob := gocv.BlobFromImage(img, n.opts.Scale, n.opts.InputSize, mean, n.opts.SwapRB, false)
	defer blob.Close()
	n.net.SetInput(blob, "")

	geometry := images.Frame{Width: img.Cols(), Height: img.Rows()}
	if n.metadata.HasImInfo {
		info := gocv.NewMatWithSize(1, 3, gocv.MatTypeCV32F)
		defer info.Close()
		info.SetFloatAt(0, 0, float32(n.opts.InputSize.Y))
		info.SetFloatAt(0, 1, float32(n.opts.InputSize.X))
		info.SetFloatAt(0, 2, n.opts.ImInfoScale)
		n.net.SetInput(info, model.ImInfoPort)
		geometry = images.Frame{Width: n.opts.InputSize.X, Height: n.opts.InputSize.Y}
	}

	blobs := n.net.ForwardLayers(n.outputNames)
	defer func() {
		for _, b := range blobs {
			b.Close()
		}
	}()

	tensors := make([]postprocess.RawTensor, 0, len(blobs))
	for i, b := range blobs {
		t, err := toTensor(b)
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", n.outputNames[i])
		}
		if t != nil {
			tensors = append(tensors, t)
		}
	}

	return &inference.Outputs{
		Tensors:  tensors,
		Metadata: n.metadata,
		Geometry: geometry,
	}, nil
}

// toTensor copies a float blob into a dense tensor of the same shape. Blobs without
// elements yield nil.
func toTensor(m gocv.Mat) (*tensor.Dense, error) {
	if m.Total() == 0 {
		return nil, nil
	}
	data, err := m.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	backing := make([]float32, len(data))
	copy(backing, data)

	return tensor.New(tensor.WithShape(m.Size()...), tensor.WithBacking(backing)), nil
}

// Close releases the network.
func (n *Net) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}
