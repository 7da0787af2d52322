package inference

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

type fakeEngine struct {
	outputs *Outputs
	err     error
	closed  bool
}

func (e *fakeEngine) Infer(ctx context.Context, img gocv.Mat) (*Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.outputs, e.err
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

func TestPipeline_Process(t *testing.T) {
	detector, err := detectors.New(detectors.DefaultConfig())
	require.NoError(t, err)

	engine := &fakeEngine{outputs: &Outputs{
		Tensors: []postprocess.RawTensor{
			tensor.New(tensor.WithShape(1, 1, 1, 7), tensor.WithBacking([]float32{0, 5, 0.9, 0.1, 0.2, 0.5, 0.6})),
		},
		Metadata: model.Metadata{LastLayerType: model.LayerTypeDetectionOutput},
		Geometry: images.Frame{Width: 640, Height: 480},
	}}
	pipeline := NewPipeline(engine, detector)

	img := gocv.NewMat()
	defer img.Close()

	results, geometry, err := pipeline.Process(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, images.Frame{Width: 640, Height: 480}, geometry)
	assert.Equal(t, postprocess.Results{
		{Box: images.Box{Left: 64, Top: 96, Width: 257, Height: 193}, Score: 0.9, Class: 4},
	}, results)

	require.NoError(t, pipeline.Close())
	assert.True(t, engine.closed)
}

func TestPipeline_InferenceError(t *testing.T) {
	detector, err := detectors.New(detectors.DefaultConfig())
	require.NoError(t, err)
	pipeline := NewPipeline(&fakeEngine{err: errors.New("forward failed")}, detector)

	img := gocv.NewMat()
	defer img.Close()

	results, _, err := pipeline.Process(context.Background(), img)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward failed")
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestParseEngineType(t *testing.T) {
	e, err := ParseEngineType("OpenCV")
	require.NoError(t, err)
	assert.Equal(t, EngineOpenCV, e)

	_, err = ParseEngineType("tensorrt")
	assert.Error(t, err)
}
