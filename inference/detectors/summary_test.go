package detectors

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

func TestSummarize(t *testing.T) {
	summary := Summarize(postprocess.Results{
		{Box: images.Box{Left: 0, Top: 0, Width: 10, Height: 10}, Score: 0.9, Class: 1},
		{Box: images.Box{Left: 20, Top: 30, Width: 20, Height: 10}, Score: 0.7, Class: 1},
		{Box: images.Box{Left: 5, Top: 5, Width: 10, Height: 30}, Score: 0.5, Class: 3},
	})

	assert.Equal(t, 3, summary.TotalObjects)
	assert.Equal(t, map[int]int{1: 2, 3: 1}, summary.PerClass)
	assert.InDelta(t, 200.0, summary.AverageObjectSize, 1e-9)
	assert.Equal(t, image.Rect(0, 0, 40, 40), summary.BoundingRegion)

	stats := summary.ConfidenceDistribution
	assert.InDelta(t, 0.7, stats.Mean, 1e-6)
	assert.InDelta(t, 0.7, stats.Median, 1e-6)
	assert.InDelta(t, 0.5, stats.Min, 1e-6)
	assert.InDelta(t, 0.9, stats.Max, 1e-6)
	assert.InDelta(t, 0.1633, stats.StdDev, 1e-3)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(postprocess.Results{})

	assert.Zero(t, summary.TotalObjects)
	assert.NotNil(t, summary.PerClass)
	assert.Empty(t, summary.PerClass)
}
