package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

type countingProcessor struct {
	calls  int
	failAt map[int]bool
}

func (p *countingProcessor) Process(_ context.Context, img gocv.Mat) (postprocess.Results, images.Frame, error) {
	p.calls++
	if p.failAt[p.calls] {
		return nil, images.Frame{}, errors.New("rejected")
	}
	return postprocess.Results{
		{Box: images.Box{Width: 2, Height: 2}, Score: 0.9, Class: 1},
		{Box: images.Box{Left: 4, Width: 2, Height: 2}, Score: 0.8, Class: 2},
	}, images.Frame{Width: img.Cols(), Height: img.Rows()}, nil
}

func encodedFrame(t *testing.T) []byte {
	t.Helper()
	mat := gocv.NewMatWithSize(24, 32, gocv.MatTypeCV8UC3)
	defer mat.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...)
}

func TestLoadFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.jpg", "b.png", "a.bmp", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700))

	frames, err := LoadFrames(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range frames {
		names = append(names, filepath.Base(f.Path))
		assert.Equal(t, []byte(filepath.Base(f.Path)), f.Data)
	}
	assert.Equal(t, []string{"frame-2.jpg", "frame-10.jpg", "a.bmp", "b.png"}, names)
	assert.Equal(t, 2, frames[0].Index)
	assert.Equal(t, -1, frames[3].Index)
}

func TestLoadFrames_Errors(t *testing.T) {
	_, err := LoadFrames(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o600))
	_, err = LoadFrames(dir)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	frames := []FrameFile{{Path: "a.jpg", Data: encodedFrame(t)}, {Path: "b.jpg", Data: encodedFrame(t)}}
	processor := &countingProcessor{failAt: map[int]bool{4: true}}

	report, err := Run(context.Background(), processor, frames, Options{Name: "ssd", Warmup: 2, Iterations: 5})
	require.NoError(t, err)

	assert.Equal(t, 7, processor.calls)
	assert.Equal(t, "ssd", report.Name)
	assert.Equal(t, 5, report.Frames)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 8, report.Detections)
	assert.InDelta(t, 0.2, report.ErrorRate, 1e-9)
	assert.LessOrEqual(t, report.Latency.Min, report.Latency.P50)
	assert.LessOrEqual(t, report.Latency.P50, report.Latency.Max)
}

func TestRun_DefaultIterations(t *testing.T) {
	frames := []FrameFile{{Path: "a.jpg", Data: encodedFrame(t)}}
	processor := &countingProcessor{}

	report, err := Run(context.Background(), processor, frames, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Frames)
	assert.Equal(t, 1, processor.calls)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), &countingProcessor{}, nil, Options{})
	assert.Error(t, err)

	_, err = Run(context.Background(), &countingProcessor{}, []FrameFile{{Path: "x.jpg", Data: []byte("not an image")}}, Options{})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, &countingProcessor{}, []FrameFile{{Path: "a.jpg", Data: encodedFrame(t)}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarizeLatency(t *testing.T) {
	latency := summarizeLatency([]float64{4, 1, 3, 2})
	assert.Equal(t, 2.5, latency.Mean)
	assert.Equal(t, 2.0, latency.P50)
	assert.Equal(t, 4.0, latency.P99)
	assert.Equal(t, 1.0, latency.Min)
	assert.Equal(t, 4.0, latency.Max)

	assert.Equal(t, Latency{}, summarizeLatency(nil))
}

func TestWriteReports(t *testing.T) {
	report := &Report{Name: "ssd", Frames: 10, Detections: 3, FramesPerSecond: 25, Latency: Latency{Mean: 40}}

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteJSON(&jsonBuf, report))
	var decoded []Report
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 40.0, decoded[0].Latency.Mean)

	var csvBuf bytes.Buffer
	require.NoError(t, WriteCSV(&csvBuf, report))
	rows, err := csv.NewReader(&csvBuf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"ssd", "10", "25.00", "0.00", "40.00", "0.00", "0.00", "0.00", "3", "0.0000", "0.00"}, rows[1])
}
