package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models/model"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "detect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, inference.EngineOpenCV, config.Engine)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, image.Point{X: 160, Y: 120}, config.OpenCV.InputSize)
	assert.Equal(t, float32(0.5), config.Detector.ConfidenceThreshold)
	assert.Error(t, config.ValidateEngine())
}

func TestLoad(t *testing.T) {
	path := write(t, `
log:
  level: debug
  development: true
engine: onnx
onnx:
  backend: cuda
  model_path: yolo.onnx
  input_name: images
  input_size: {x: 416, y: 416}
  outputs:
    - name: output
      shape: [1, 2535, 85]
  format: region
  cuda:
    device_id: 1
detector:
  family: coco
  region_score_offset: 5
server:
  addr: 127.0.0.1:9000
  stream_idle_timeout: 2s
  allowed_origins: ["https://console.example.com"]
capture:
  source: rtsp://camera/stream
  resolution: 720p
  motion:
    enabled: true
    threshold: 0.01
`)

	config, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, config.ValidateEngine())

	assert.Equal(t, "debug", config.Log.Level)
	assert.True(t, config.Log.Development)
	assert.Equal(t, inference.EngineONNX, config.Engine)
	assert.Equal(t, providers.CUDABackend, config.ONNX.Backend)
	assert.Equal(t, image.Point{X: 416, Y: 416}, config.ONNX.InputSize)
	assert.Equal(t, []providers.OutputSpec{{Name: "output", Shape: []int64{1, 2535, 85}}}, config.ONNX.Outputs)
	assert.Equal(t, model.FormatRegion, config.ONNX.Format)
	assert.Equal(t, 1, config.ONNX.CUDA.DeviceID)
	assert.Len(t, config.Detector.Labels(), 80)
	assert.Equal(t, 5, config.Detector.RegionScoreOffset)
	assert.Equal(t, float32(0.4), config.Detector.NMSThreshold)
	assert.Equal(t, 2*time.Second, config.Server.StreamIdleTimeout)
	assert.Equal(t, []string{"https://console.example.com"}, config.Server.AllowedOrigins)
	assert.Equal(t, "rtsp://camera/stream", config.Capture.Source)
	assert.Equal(t, "720p", config.Capture.Resolution)
	assert.True(t, config.Capture.Motion.Enabled)
	assert.Equal(t, 0.01, config.Capture.Motion.Threshold)
	assert.Equal(t, 21, config.Capture.Motion.BlurKernelSize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "engine: [\n"},
		{"unknown engine", "engine: tensorrt\n"},
		{"bad detector", "detector:\n  nms_threshold: 2\n"},
		{"unknown family", "detector:\n  family: imagenet\n"},
		{"unknown resolution", "capture:\n  resolution: 16k\n"},
		{"bad motion", "capture:\n  motion:\n    enabled: true\n    blur_kernel_size: 4\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(write(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateEngine(t *testing.T) {
	config := Default()
	config.OpenCV.ModelPath = "MobileNetSSD_deploy.caffemodel"
	assert.NoError(t, config.ValidateEngine())

	config.Engine = inference.EngineONNX
	assert.Error(t, config.ValidateEngine())
	config.ONNX.ModelPath = "ssd.onnx"
	assert.NoError(t, config.ValidateEngine())
}
