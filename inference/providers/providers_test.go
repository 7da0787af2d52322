package providers

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect/models/model"
)

func TestPrepareInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 128, B: 0, A: 255})
	img.Set(1, 0, color.RGBA{R: 0, G: 0, B: 255, A: 255})
	size := image.Point{X: 2, Y: 1}

	tests := []struct {
		name   string
		swapRB bool
		want   []float32
	}{
		{
			name: "bgr",
			// planes: B, G, R
			want: []float32{0, 255, 128, 0, 255, 0},
		},
		{
			name:   "rgb",
			swapRB: true,
			want:   []float32{255, 0, 128, 0, 0, 255},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]float32, 6)
			require.NoError(t, PrepareInput(img, size, [3]float32{}, 1, tc.swapRB, dst))
			assert.Equal(t, tc.want, dst)
		})
	}
}

func TestPrepareInput_MeanAndScale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 127, B: 0, A: 255})

	dst := make([]float32, 3)
	require.NoError(t, PrepareInput(img, image.Point{X: 1, Y: 1}, [3]float32{127.5, 127.5, 127.5}, 1/127.5, true, dst))
	assert.InDeltaSlice(t, []float32{1, -0.0039, -1}, dst, 1e-3)
}

func TestPrepareInput_Resizes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	dst := make([]float32, 3*8*6)
	require.NoError(t, PrepareInput(img, image.Point{X: 8, Y: 6}, [3]float32{}, 1, false, dst))
}

func TestPrepareInput_ShortDestination(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	err := PrepareInput(img, image.Point{X: 4, Y: 4}, [3]float32{}, 1, false, make([]float32, 10))
	assert.Error(t, err)
}

func TestToDense(t *testing.T) {
	data := []float32{0, 1, 0.9, 0.1, 0.1, 0.2, 0.2}
	d := toDense(ort.NewShape(1, 1, 1, 7), data)
	data[2] = 0

	assert.Equal(t, []int{1, 1, 1, 7}, []int(d.Shape()))
	assert.Equal(t, float32(0.9), d.Data().([]float32)[2])
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, CPUBackend, b)

	b, err = ParseBackend("OpenVINO")
	require.NoError(t, err)
	assert.Equal(t, OpenVINOBackend, b)

	_, err = ParseBackend("tensorrt")
	assert.Error(t, err)
}

func TestProviderOptions(t *testing.T) {
	cuda := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, UseTF32: true}.providerOptions()
	assert.Equal(t, "1", cuda["device_id"])
	assert.Equal(t, "1073741824", cuda["gpu_mem_limit"])
	assert.Equal(t, "1", cuda["use_tf32"])
	assert.NotContains(t, cuda, "arena_extend_strategy")

	openvino := OpenVINOOptions{DeviceType: "GPU", Precision: "FP16"}.providerOptions()
	assert.Equal(t, map[string]string{"device_type": "GPU", "precision": "FP16"}, openvino)

	assert.Equal(t, uint32(0), CoreMLOptions{}.flags())
	assert.Equal(t, uint32(0x005), CoreMLOptions{CPUOnly: true, OnlyANE: true}.flags())
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.ModelPath = "ssd.onnx"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "backend", mutate: func(c *Config) { c.Backend = "tpu" }},
		{name: "model path", mutate: func(c *Config) { c.ModelPath = "" }},
		{name: "input name", mutate: func(c *Config) { c.InputName = "" }},
		{name: "input size", mutate: func(c *Config) { c.InputSize = image.Point{} }},
		{name: "no outputs", mutate: func(c *Config) { c.Outputs = nil }},
		{name: "output name", mutate: func(c *Config) { c.Outputs = []OutputSpec{{Shape: []int64{1, 7}}} }},
		{name: "output shape", mutate: func(c *Config) { c.Outputs = []OutputSpec{{Name: "out", Shape: []int64{1, 0}}} }},
		{name: "threads", mutate: func(c *Config) { c.IntraOpThreads = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			c.Outputs = append([]OutputSpec(nil), valid.Outputs...)
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_Metadata(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, model.Metadata{LastLayerType: model.LayerTypeDetectionOutput}, c.Metadata())

	c.ImInfoInput = "im_info"
	c.Format = model.FormatRegionProposal
	meta := c.Metadata()
	assert.True(t, meta.HasImInfo)
	assert.Equal(t, model.FormatRegionProposal, meta.Format)
}

func TestGetSharedLibPath(t *testing.T) {
	path, err := GetSharedLibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", path)

	t.Setenv(LibraryPathEnv, "/usr/lib/libonnxruntime.so")
	path, err = GetSharedLibPath("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", path)

	_, err = platformLibPath("plan9", "386")
	assert.Error(t, err)
	path, err = platformLibPath("linux", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "./third_party/onnxruntime_arm64.so", path)
}
