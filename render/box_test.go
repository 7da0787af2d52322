package render

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

func TestLabelText(t *testing.T) {
	r := postprocess.Result{Score: 0.875, Class: 1}

	text, err := LabelText(r, nil)
	require.NoError(t, err)
	assert.Equal(t, "87.50", text)

	text, err = LabelText(r, models.Labels{"person", "bicycle"})
	require.NoError(t, err)
	assert.Equal(t, "bicycle: 87.50", text)

	_, err = LabelText(postprocess.Result{Class: 5}, models.Labels{"person"})
	var classErr *models.ClassIndexError
	require.True(t, errors.As(err, &classErr))
	assert.Equal(t, 5, classErr.ClassID)
}

func TestLabelPlacement(t *testing.T) {
	tests := []struct {
		name       string
		top        int
		wantOrigin image.Point
		wantRect   image.Rectangle
	}{
		{
			name:       "above box",
			top:        50,
			wantOrigin: image.Pt(10, 50),
			wantRect:   image.Rect(10, 36, 70, 54),
		},
		{
			name:       "clamped at frame top",
			top:        3,
			wantOrigin: image.Pt(10, 12),
			wantRect:   image.Rect(10, -2, 70, 16),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			origin, rect := LabelPlacement(10, tc.top, image.Pt(60, 12), 4)
			assert.Equal(t, tc.wantOrigin, origin)
			assert.Equal(t, tc.wantRect, rect)
		})
	}
}

func TestDetections(t *testing.T) {
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()

	results := postprocess.Results{
		{Box: images.Box{Left: 10, Top: 20, Width: 50, Height: 40}, Score: 0.9, Class: 0},
	}
	require.NoError(t, Detections(&img, results, models.Labels{"person"}, DefaultStyle()))
	assert.Equal(t, gocv.Vecb{0, 255, 0}, img.GetVecbAt(59, 30))

	err := Detections(&img, postprocess.Results{{Box: results[0].Box, Class: 3}}, models.Labels{"person"}, DefaultStyle())
	assert.Error(t, err)
}
